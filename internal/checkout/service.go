// Package checkout exposes cart price validation to the storefront.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/noah-isme/toko-priceguard/internal/common"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/obs"
	"github.com/noah-isme/toko-priceguard/internal/review"
)

// CodeUnavailable is returned when a pricing collaborator cannot be reached.
const CodeUnavailable = common.CodeUnavailable

// Validator verifies a cart.
type Validator interface {
	Validate(ctx context.Context, lines []integrity.SubmittedLine, buyerID string) (integrity.Result, error)
	Locale() language.Tag
}

// ReviewQueue accepts unverifiable lines for manual review.
type ReviewQueue interface {
	Enqueue(ctx context.Context, payload review.Payload) error
}

// Verdict is the outcome of one validation request.
type Verdict struct {
	ValidationID string
	Result       integrity.Result
}

// Service runs validations and records their outcome.
type Service struct {
	engine  Validator
	reviews ReviewQueue
	logger  zerolog.Logger
	newID   func() uuid.UUID
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Engine  Validator
	Reviews ReviewQueue
	Logger  zerolog.Logger
}

// NewService constructs a Service. Reviews may be nil to disable the review queue.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		engine:  cfg.Engine,
		reviews: cfg.Reviews,
		logger:  cfg.Logger,
		newID:   uuid.New,
		now:     time.Now,
	}
}

// Locale returns the engine's default locale.
func (s *Service) Locale() language.Tag { return s.engine.Locale() }

// Validate verifies lines on behalf of buyerID, in the same argument order as the engine.
// Collaborator failures are reported as unavailable and never as an accepted cart.
func (s *Service) Validate(ctx context.Context, lines []integrity.SubmittedLine, buyerID string) (Verdict, error) {
	start := s.now()
	verdict := Verdict{ValidationID: s.newID().String()}
	logger := obs.WithRequestContext(ctx, s.logger).With().
		Str("validation_id", verdict.ValidationID).
		Str("buyer_id", buyerID).
		Int("lines", len(lines)).
		Logger()

	res, err := s.engine.Validate(ctx, lines, buyerID)
	observeDuration(s.now().Sub(start))
	if err != nil {
		observeVerdict("unavailable", CodeUnavailable)
		logger.Error().Err(err).Msg("cart validation unavailable")
		return verdict, common.Unavailable(CodeUnavailable, err)
	}
	verdict.Result = res

	for _, a := range res.Anomalies {
		observeAnomaly(a.Kind)
		logger.Warn().Str("anomaly", a.Kind).Str("detail", a.Detail).Msg("cart validation anomaly")
	}

	if !res.Accepted {
		observeVerdict("rejected", string(res.Code))
		logger.Info().
			Str("code", string(res.Code)).
			Str("stage", string(res.Stage)).
			Int("line", res.Line).
			Str("reason", res.Reason).
			Msg("cart rejected")
		return verdict, nil
	}

	observeVerdict("accepted", "")
	logger.Info().
		Str("grand_total", res.Breakdown.GrandTotal.StringFixed(2)).
		Int("unverifiable", len(res.Unverifiable)).
		Msg("cart accepted")

	if len(res.Unverifiable) > 0 {
		observeUnverifiable(len(res.Unverifiable))
		s.enqueueReview(ctx, logger, buyerID, verdict)
	}
	return verdict, nil
}

func (s *Service) enqueueReview(ctx context.Context, logger zerolog.Logger, buyerID string, verdict Verdict) {
	if s.reviews == nil {
		return
	}
	err := s.reviews.Enqueue(ctx, review.Payload{
		ValidationID: verdict.ValidationID,
		BuyerID:      buyerID,
		Lines:        verdict.Result.Unverifiable,
		SubmittedAt:  s.now().UTC(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("enqueue unverifiable line review")
	}
}

func observeVerdict(result, code string) {
	if obs.CartValidationTotal != nil {
		obs.CartValidationTotal.WithLabelValues(result, code).Inc()
	}
}

func observeDuration(d time.Duration) {
	if obs.CartValidationDuration != nil {
		obs.CartValidationDuration.Observe(d.Seconds())
	}
}

func observeAnomaly(kind string) {
	if obs.CartValidationAnomalies != nil {
		obs.CartValidationAnomalies.WithLabelValues(kind).Inc()
	}
}

func observeUnverifiable(n int) {
	if obs.CartUnverifiableLines != nil {
		obs.CartUnverifiableLines.Add(float64(n))
	}
}
