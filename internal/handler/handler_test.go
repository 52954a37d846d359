package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taxservice/internal/middleware"
	"taxservice/internal/service"
	"taxservice/internal/taxcalc"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type fakeCalculationService struct {
	calculateErr error
	historyErr   error
	gotUserID    string
	gotReq       service.CalculateRequest
	gotPage      int
	gotLimit     int
}

func (f *fakeCalculationService) Calculate(_ context.Context, userID string, req service.CalculateRequest) (*service.CalculationResponse, error) {
	f.gotUserID, f.gotReq = userID, req
	if f.calculateErr != nil {
		return nil, f.calculateErr
	}
	return &service.CalculationResponse{
		ID:            uuid.MustParse(userID),
		TaxType:       req.TaxType,
		Amount:        *req.Amount,
		CalculatedTax: decimal.NewFromInt(702000),
	}, nil
}

func (f *fakeCalculationService) History(_ context.Context, userID string, page, limit int) ([]service.CalculationHistoryItem, int64, error) {
	f.gotUserID, f.gotPage, f.gotLimit = userID, page, limit
	if f.historyErr != nil {
		return nil, 0, f.historyErr
	}
	return []service.CalculationHistoryItem{{ID: uuid.New(), TaxType: 1, Date: "2024-03-01", Total: decimal.NewFromInt(312000)}}, 1, nil
}

type fakeUserService struct {
	registerErr error
	authErr     error
}

func (f *fakeUserService) Register(context.Context, service.RegisterRequest) (*service.RegisterResponse, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &service.RegisterResponse{UserID: uuid.New()}, nil
}

func (f *fakeUserService) Authenticate(context.Context, service.AuthRequest) (*service.AuthResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &service.AuthResponse{UserID: uuid.New(), Token: "signed-token"}, nil
}

func (f *fakeUserService) GetUserByID(_ context.Context, id string) (*service.UserResponse, error) {
	return &service.UserResponse{ID: uuid.MustParse(id), Login: "ivan"}, nil
}

type fakeAuditService struct{}

func (fakeAuditService) ListByUser(context.Context, string, int, int) ([]service.AuditLogResponse, int64, error) {
	return []service.AuditLogResponse{{Action: "LOGIN_USER"}}, 1, nil
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func newRouter(calc service.CalculationService, users service.UserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("")
	NewUserHandler(users, testSecret, time.Hour, false).RegisterRoutes(api)
	NewCalculationHandler(calc, testSecret, middleware.NewRateLimiter(1000, 1000, zap.NewNop())).RegisterRoutes(api)
	NewAuditHandler(fakeAuditService{}, testSecret).RegisterRoutes(api)
	return r
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + s
}

func do(t *testing.T, r *gin.Engine, method, path, auth, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestCalculate_BothPaths(t *testing.T) {
	calc := &fakeCalculationService{}
	r := newRouter(calc, &fakeUserService{})
	userID := uuid.NewString()

	for _, path := range []string{"/raschet/" + userID, "/api/users/" + userID + "/calculations"} {
		rec, env := do(t, r, http.MethodPost, path, bearer(t, userID),
			`{"tax_type":1,"operation":0,"amount":5000000,"custom_rate":0,"new":1}`)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, userID, calc.gotUserID)
		assert.True(t, decimal.NewFromInt(5000000).Equal(*calc.gotReq.Amount))
		assert.Contains(t, string(env.Data), `"calculated_tax":"702000"`)
	}
}

func TestCalculate_AcceptsStringAmounts(t *testing.T) {
	calc := &fakeCalculationService{}
	r := newRouter(calc, &fakeUserService{})
	userID := uuid.NewString()

	rec, _ := do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID),
		`{"tax_type":5,"operation":1,"amount":"1000.50","custom_rate":"20","new":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, calc.gotReq.CustomRate)
	require.NotNil(t, calc.gotReq.Amount)
	assert.True(t, decimal.RequireFromString("1000.50").Equal(*calc.gotReq.Amount))
}

func TestCalculate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing rate", err: taxcalc.ErrMissingRate, want: http.StatusBadRequest},
		{name: "degenerate rate", err: &taxcalc.DegenerateRateError{Rate: decimal.NewFromInt(100)}, want: http.StatusBadRequest},
		{name: "unsupported", err: &taxcalc.UnsupportedTaxTypeError{TaxType: 9}, want: http.StatusBadRequest},
		{name: "negative amount", err: service.ErrNegativeAmount, want: http.StatusBadRequest},
		{name: "internal", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&fakeCalculationService{calculateErr: tt.err}, &fakeUserService{})
			userID := uuid.NewString()

			rec, env := do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID), `{"tax_type":5,"amount":1}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.want, env.StatusCode)
		})
	}
}

func TestCalculate_AuthAndPayload(t *testing.T) {
	r := newRouter(&fakeCalculationService{}, &fakeUserService{})
	userID := uuid.NewString()

	rec, _ := do(t, r, http.MethodPost, "/raschet/"+userID, "", `{"tax_type":1,"amount":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, uuid.NewString()), `{"tax_type":1,"amount":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID), `{"tax_type":1,"amount":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculate_RequiresAmount(t *testing.T) {
	calc := &fakeCalculationService{}
	r := newRouter(calc, &fakeUserService{})
	userID := uuid.NewString()

	for _, body := range []string{`{"tax_type":1,"operation":0,"new":1}`, `{"tax_type":1,"amount":null}`} {
		rec, env := do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, env.Error, "Amount", body)
	}
	assert.Empty(t, calc.gotUserID, "service must not run without an amount")
}

func TestCalculate_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCalculationHandler(&fakeCalculationService{}, testSecret, middleware.NewRateLimiter(1, 1, zap.NewNop())).RegisterRoutes(r.Group(""))
	userID := uuid.NewString()

	rec, _ := do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID), `{"tax_type":1,"amount":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, r, http.MethodPost, "/raschet/"+userID, bearer(t, userID), `{"tax_type":1,"amount":1}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHistory(t *testing.T) {
	calc := &fakeCalculationService{}
	r := newRouter(calc, &fakeUserService{})
	userID := uuid.NewString()

	rec, env := do(t, r, http.MethodGet, "/calculations/"+userID, bearer(t, userID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, calc.gotLimit, "no query params means the full history")
	assert.Contains(t, string(env.Data), `"date":"2024-03-01"`)
	assert.Contains(t, string(env.Data), `"total":1`)

	rec, env = do(t, r, http.MethodGet, "/api/users/"+userID+"/calculations?page=2&limit=5", bearer(t, userID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calc.gotPage)
	assert.Equal(t, 5, calc.gotLimit)
	assert.Contains(t, string(env.Data), `"limit":5`)
}

func TestHistory_Empty(t *testing.T) {
	r := newRouter(&fakeCalculationService{historyErr: service.ErrNoCalculations}, &fakeUserService{})
	userID := uuid.NewString()

	rec, env := do(t, r, http.MethodGet, "/calculations/"+userID, bearer(t, userID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No calculations found for this user", env.Error)
}

func TestRegister(t *testing.T) {
	r := newRouter(&fakeCalculationService{}, &fakeUserService{})

	rec, env := do(t, r, http.MethodPost, "/register", "", `{"email":"ivan@example.com","login":"ivan","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), `"user_id"`)

	rec, _ = do(t, r, http.MethodPost, "/register", "", `{"email":"not-an-email","login":"ivan","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r = newRouter(&fakeCalculationService{}, &fakeUserService{registerErr: service.ErrUserExists})
	rec, _ = do(t, r, http.MethodPost, "/register", "", `{"email":"ivan@example.com","login":"ivan","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	r := newRouter(&fakeCalculationService{}, &fakeUserService{})

	rec, env := do(t, r, http.MethodPost, "/auth", "", `{"login":"ivan","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"token":"signed-token"`)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "access_token=signed-token")

	r = newRouter(&fakeCalculationService{}, &fakeUserService{authErr: service.ErrInvalidCredentials})
	rec, env = do(t, r, http.MethodPost, "/auth", "", `{"login":"ivan","password":"wrong"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid login or password", env.Error)
}

func TestGetUserAndAuditLogs(t *testing.T) {
	r := newRouter(&fakeCalculationService{}, &fakeUserService{})
	userID := uuid.NewString()

	rec, env := do(t, r, http.MethodGet, "/api/users/"+userID, bearer(t, userID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"login":"ivan"`)

	rec, env = do(t, r, http.MethodGet, "/api/users/"+userID+"/audit-logs", bearer(t, userID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"LOGIN_USER"`)
}
