package repository

import (
	"context"

	"taxservice/internal/model"

	"gorm.io/gorm"
)

// UserRepository reads and creates accounts. Lookups are exact matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.findOne(ctx, "login", login)
}

// findOne returns gorm.ErrRecordNotFound when no live user matches column.
// column is always one of the fixed names above, never caller input.
func (r *userRepository) findOne(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Where(column+" = ?", value).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
