package checkout_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/toko-priceguard/internal/checkout"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

type capturingValidator struct {
	lines   []integrity.SubmittedLine
	buyerID string
}

func (v *capturingValidator) Validate(_ context.Context, lines []integrity.SubmittedLine, buyerID string) (integrity.Result, error) {
	v.lines, v.buyerID = lines, buyerID
	return integrity.Result{Code: integrity.CodeInvalidLine, Line: 0, Stage: integrity.StageClassified}, nil
}

func (v *capturingValidator) Locale() language.Tag { return language.English }

func TestServicePassesLinesAndBuyerToEngine(t *testing.T) {
	engine := &capturingValidator{}
	svc := checkout.NewService(checkout.ServiceConfig{Engine: engine, Logger: zerolog.Nop()})
	lines := []integrity.SubmittedLine{{CatalogToken: "P-100"}}

	verdict, err := svc.Validate(context.Background(), lines, "buyer-7")
	require.NoError(t, err)
	require.NotEmpty(t, verdict.ValidationID)
	require.False(t, verdict.Result.Accepted)
	require.Equal(t, lines, engine.lines)
	require.Equal(t, "buyer-7", engine.buyerID)
}
