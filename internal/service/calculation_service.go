package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"taxservice/internal/cache"
	"taxservice/internal/metrics"
	"taxservice/internal/model"
	"taxservice/internal/repository"
	"taxservice/internal/taxcalc"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CalculateRequest is the wire body of a calculation. Numbers may be sent
// either as JSON numbers or as strings.
type CalculateRequest struct {
	TaxType    int              `json:"tax_type" example:"1"`
	Operation  int              `json:"operation" example:"0"`
	Amount     *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"5000000"`
	CustomRate *decimal.Decimal `json:"custom_rate" swaggertype:"string" example:"20"`
	New        int              `json:"new" example:"1"`
}

type CalculationResponse struct {
	ID             uuid.UUID        `json:"id"` // owner of the calculation
	CalculationID  *uuid.UUID       `json:"calculation_id,omitempty"`
	TaxType        int              `json:"tax_type"`
	Operation      int              `json:"operation"`
	Amount         decimal.Decimal  `json:"amount" swaggertype:"string"`
	CalculatedTax  decimal.Decimal  `json:"calculated_tax" swaggertype:"string"`
	CustomRateUsed *decimal.Decimal `json:"custom_rate_used" swaggertype:"string"`
}

type CalculationHistoryItem struct {
	ID        uuid.UUID       `json:"id"`
	TaxType   int             `json:"tax_type"`
	Date      string          `json:"date"`
	Operation int             `json:"operation"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string"`
	New       int             `json:"new"`
	Total     decimal.Decimal `json:"total" swaggertype:"string"`
}

// Publisher receives every recorded calculation, e.g. the websocket hub.
type Publisher interface {
	Publish(userID string, payload []byte)
}

type CalculationService interface {
	Calculate(ctx context.Context, userID string, req CalculateRequest) (*CalculationResponse, error)
	// History returns the user's calculations newest first. limit <= 0 returns all of them.
	History(ctx context.Context, userID string, page, limit int) ([]CalculationHistoryItem, int64, error)
}

type calculationService struct {
	repo      repository.CalculationRepository
	cache     cache.HistoryCache
	publisher Publisher
	logger    *zap.Logger
}

// NewCalculationService wires the engine to storage. historyCache and publisher may be nil.
func NewCalculationService(repo repository.CalculationRepository, historyCache cache.HistoryCache, publisher Publisher, logger *zap.Logger) CalculationService {
	if historyCache == nil {
		historyCache = cache.Noop{}
	}
	return &calculationService{
		repo:      repo,
		cache:     historyCache,
		publisher: publisher,
		logger:    logger,
	}
}

func validateCalculation(req CalculateRequest) error {
	if req.Amount == nil {
		return ErrMissingAmount
	}
	if req.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if req.CustomRate != nil && !taxcalc.RateInRange(*req.CustomRate) {
		return ErrRateOutOfRange
	}
	if !taxcalc.OperationMode(req.Operation).Valid() {
		return ErrInvalidOperation
	}
	if !taxcalc.RegimeVersion(req.New).Valid() {
		return ErrInvalidRegime
	}
	return nil
}

func (s *calculationService) Calculate(ctx context.Context, userID string, req CalculateRequest) (*CalculationResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrInvalidUserID
	}

	taxType := taxcalc.TaxType(req.TaxType)
	label := taxType.String()
	if !taxType.Valid() {
		label = "unknown"
	}

	if err := validateCalculation(req); err != nil {
		metrics.ObserveCalculation(label, "rejected")
		return nil, err
	}

	result, err := taxcalc.Evaluate(taxcalc.Request{
		TaxType:    taxType,
		Operation:  taxcalc.OperationMode(req.Operation),
		Amount:     *req.Amount,
		CustomRate: req.CustomRate,
		Regime:     taxcalc.RegimeVersion(req.New),
	})
	if err != nil {
		metrics.ObserveCalculation(label, "rejected")
		return nil, err
	}
	metrics.ObserveCalculation(label, "ok")

	res := &CalculationResponse{
		ID:             uid,
		TaxType:        int(result.TaxType),
		Operation:      int(result.Operation),
		Amount:         result.Amount,
		CalculatedTax:  result.CalculatedTax,
		CustomRateUsed: result.CustomRateUsed,
	}

	calc := &model.Calculation{
		UserID:    uid,
		TaxType:   int(result.TaxType),
		Operation: int(result.Operation),
		Amount:    result.Amount,
		Regime:    int(result.Regime),
		Total:     result.CalculatedTax,
	}
	if result.CustomRateUsed != nil {
		calc.CustomRate = decimal.NewNullDecimal(*result.CustomRateUsed)
	}

	// The result is returned even when it could not be recorded.
	if err := s.repo.Record(ctx, calc); err != nil {
		metrics.RecordFailure()
		s.logger.Error("Failed to record calculation",
			zap.String("user_id", userID),
			zap.Int("tax_type", req.TaxType),
			zap.Error(err),
		)
		return res, nil
	}

	res.CalculationID = &calc.ID
	if err := s.cache.Invalidate(ctx, uid); err != nil {
		s.logger.Warn("Failed to invalidate history cache", zap.String("user_id", userID), zap.Error(err))
	}
	s.publish(userID, res)

	return res, nil
}

func (s *calculationService) publish(userID string, res *CalculationResponse) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type": "CALCULATION_RECORDED",
		"data": res,
	})
	if err != nil {
		s.logger.Warn("Failed to encode calculation event", zap.Error(err))
		return
	}
	s.publisher.Publish(userID, payload)
}

func (s *calculationService) History(ctx context.Context, userID string, page, limit int) ([]CalculationHistoryItem, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, ErrInvalidUserID
	}

	calcs, total, err := s.loadHistory(ctx, uid, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load calculations: %w", err)
	}
	if total == 0 {
		return nil, 0, ErrNoCalculations
	}

	items := make([]CalculationHistoryItem, 0, len(calcs))
	for _, c := range calcs {
		items = append(items, CalculationHistoryItem{
			ID:        c.ID,
			TaxType:   c.TaxType,
			Date:      c.CreatedAt.Format("2006-01-02"),
			Operation: c.Operation,
			Amount:    c.Amount,
			New:       c.Regime,
			Total:     c.Total,
		})
	}
	return items, total, nil
}

// loadHistory serves unpaged reads from the cache; paged reads always hit the database.
// The cache generation is taken before the database read, so a list that a
// concurrent Calculate has already outdated is never stored.
func (s *calculationService) loadHistory(ctx context.Context, uid uuid.UUID, page, limit int) ([]model.Calculation, int64, error) {
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		return s.repo.ListByUser(ctx, uid, limit, (page-1)*limit)
	}

	if calcs, ok := s.cache.Get(ctx, uid); ok {
		return calcs, int64(len(calcs)), nil
	}

	gen, genErr := s.cache.Generation(ctx, uid)
	if genErr != nil {
		s.logger.Warn("Failed to read history cache generation", zap.String("user_id", uid.String()), zap.Error(genErr))
	}

	calcs, total, err := s.repo.ListByUser(ctx, uid, 0, 0)
	if err != nil {
		return nil, 0, err
	}
	if total > 0 && genErr == nil {
		err := s.cache.Set(ctx, uid, gen, calcs)
		switch {
		case errors.Is(err, cache.ErrStale):
			s.logger.Debug("Skipped caching outdated history", zap.String("user_id", uid.String()))
		case err != nil:
			s.logger.Warn("Failed to cache calculation history", zap.String("user_id", uid.String()), zap.Error(err))
		}
	}
	return calcs, total, nil
}
