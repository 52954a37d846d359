package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"taxservice/internal/cache"
	"taxservice/internal/model"
	"taxservice/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeCalculationRepo struct {
	mu        sync.Mutex
	rows      []model.Calculation
	recordErr error
	listCalls int
	// afterList, when set, runs after rows are read and before they are returned.
	afterList func(call int)
}

func (r *fakeCalculationRepo) Record(_ context.Context, calc *model.Calculation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	calc.ID = uuid.New()
	calc.CreatedAt = time.Now().Add(time.Duration(len(r.rows)) * time.Second)
	r.rows = append(r.rows, *calc)
	return nil
}

func (r *fakeCalculationRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Calculation, int64, error) {
	r.mu.Lock()
	r.listCalls++
	call, hook := r.listCalls, r.afterList
	out, total := r.list(userID, limit, offset)
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return out, total, nil
}

func (r *fakeCalculationRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

// list must be called with r.mu held.
func (r *fakeCalculationRepo) list(userID uuid.UUID, limit, offset int) ([]model.Calculation, int64) {
	out := []model.Calculation{}
	for _, c := range r.rows {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	if limit > 0 {
		if offset >= len(out) {
			return []model.Calculation{}, total
		}
		end := offset + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	return out, total
}

type fakeHistoryCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID][]model.Calculation
	generations map[uuid.UUID]int64
	invalidated int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		entries:     make(map[uuid.UUID][]model.Calculation),
		generations: make(map[uuid.UUID]int64),
	}
}

func (c *fakeHistoryCache) Get(_ context.Context, userID uuid.UUID) ([]model.Calculation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	calcs, ok := c.entries[userID]
	return calcs, ok
}

func (c *fakeHistoryCache) Generation(_ context.Context, userID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

func (c *fakeHistoryCache) Set(_ context.Context, userID uuid.UUID, generation int64, calcs []model.Calculation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != generation {
		return cache.ErrStale
	}
	c.entries[userID] = calcs
	return nil
}

func (c *fakeHistoryCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.generations[userID]++
	delete(c.entries, userID)
	return nil
}

type publishedEvent struct {
	userID  string
	payload []byte
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(userID string, payload []byte) {
	p.events = append(p.events, publishedEvent{userID: userID, payload: payload})
}

type fakeUserRepo struct {
	users     map[uuid.UUID]*model.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	for _, u := range r.users {
		if match(u) {
			found := *u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID.String() == id })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByLogin(_ context.Context, login string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Login == login })
}

type fakeAuditRepo struct {
	entries []model.AuditLog
	logErr  error
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.logErr != nil {
		return r.logErr
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByUser(_ context.Context, userID uuid.UUID, page, limit int) ([]model.AuditLog, int64, error) {
	out := []model.AuditLog{}
	for _, e := range r.entries {
		if e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

// fakeTxManager runs fn directly; rolledBack records whether fn failed.
type fakeTxManager struct {
	rolledBack bool
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.rolledBack = true
		return err
	}
	return nil
}

var (
	_ cache.HistoryCache               = (*fakeHistoryCache)(nil)
	_ repository.CalculationRepository = (*fakeCalculationRepo)(nil)
	_ repository.UserRepository        = (*fakeUserRepo)(nil)
	_ repository.AuditRepository       = (*fakeAuditRepo)(nil)
	_ repository.TransactionManager    = (*fakeTxManager)(nil)
)

var errStorageDown = errors.New("storage down")
