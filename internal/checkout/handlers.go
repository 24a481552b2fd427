package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-priceguard/internal/common"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

var defaultValidate = validator.New()

// LineInput is a cart line as posted by the storefront.
type LineInput struct {
	CatalogNumber string              `json:"catalogNumber" validate:"max=128"`
	Quantity      *int                `json:"quantity"`
	UnitPrice     decimal.NullDecimal `json:"unitPrice"`
	Description   string              `json:"description" validate:"max=1024"`
}

// ValidateRequest is the body of POST /checkout/validate.
type ValidateRequest struct {
	Lines []LineInput `json:"lines" validate:"required,min=1,max=500,dive"`
}

// AcceptedResponse is the payload returned for an accepted cart.
type AcceptedResponse struct {
	ValidationID string                       `json:"validationId"`
	Accepted     bool                         `json:"accepted"`
	Breakdown    *integrity.Breakdown         `json:"breakdown"`
	Unverifiable []integrity.UnverifiableLine `json:"unverifiable,omitempty"`
	Anomalies    []integrity.Anomaly          `json:"anomalies,omitempty"`
}

// RejectionDetails accompany a 422 response.
type RejectionDetails struct {
	ValidationID string          `json:"validationId"`
	Stage        integrity.Stage `json:"stage"`
	Line         *int            `json:"line,omitempty"`
}

// Handler serves the checkout validation endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler with a default validator.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: defaultValidate}
}

// ValidateCart decodes a cart, verifies it and renders the verdict.
func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteError(w, common.TooLarge())
			return
		}
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	if err := h.validator().Struct(req); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", fieldErrors(err)))
		return
	}

	buyerID, _ := common.BuyerID(r.Context())
	verdict, err := h.Svc.Validate(r.Context(), toSubmittedLines(req.Lines), buyerID)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	res := verdict.Result
	if !res.Accepted {
		locale := integrity.NegotiateLocale(r.Header.Get("Accept-Language"), h.Svc.Locale())
		details := RejectionDetails{ValidationID: verdict.ValidationID, Stage: res.Stage}
		if res.Line >= 0 {
			line := res.Line
			details.Line = &line
		}
		common.JSONError(w, http.StatusUnprocessableEntity, string(res.Code), integrity.Localize(locale, res.Code, res.Params...), details)
		return
	}
	common.Data(w, http.StatusOK, AcceptedResponse{
		ValidationID: verdict.ValidationID,
		Accepted:     true,
		Breakdown:    res.Breakdown,
		Unverifiable: res.Unverifiable,
		Anomalies:    res.Anomalies,
	})
}

func (h *Handler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return defaultValidate
}

func toSubmittedLines(in []LineInput) []integrity.SubmittedLine {
	out := make([]integrity.SubmittedLine, len(in))
	for i, l := range in {
		out[i] = integrity.SubmittedLine{
			CatalogToken:      l.CatalogNumber,
			Quantity:          l.Quantity,
			DeclaredUnitPrice: l.UnitPrice,
			Description:       l.Description,
		}
	}
	return out
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}
