/*
handlers.go - HTTP API handlers for the penalty engine

PURPOSE:
  Exposes the penalty engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the calculation service.

ENDPOINTS:
  Obligations:
    GET    /api/obligations                   List obligations awaiting resolution
    POST   /api/obligations                   Register an obligation
    GET    /api/obligations/{id}              Get obligation details
    GET    /api/obligations/{id}/penalties    List finalized penalties

  Overdue penalty:
    GET    /api/obligations/{id}/penalty            Dry-run projection
    POST   /api/obligations/{id}/penalty/finalize   Finalize and invoice

  Late-submission penalty:
    GET    /api/obligations/{id}/late-submission            Dry-run projection
    POST   /api/obligations/{id}/late-submission/finalize   Finalize and invoice

  Accrual history:
    GET    /api/penalties/{id}/accruals       Day-by-day accrual rows

  Rates:
    GET    /api/rates                         Current rate table
    POST   /api/rates                         Replace the rate table

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Obligation or penalty not found
  - 422: Obligation has no ledger invoice to accrue against
  - 502: External ledger unreachable or invoice creation failed
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - penalty/service.go: The calculation sequence behind these handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/factory"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/penalty"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence surface the API needs: the penalty store plus
// the rate table. Both SQLite and memory stores satisfy it.
type Store interface {
	penalty.Store
	ReplaceRatePeriods(ctx context.Context, periods []engine.RatePeriod) error
	ListRatePeriods(ctx context.Context) ([]engine.RatePeriod, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Service *penalty.CalculationService
	Rates   *engine.Registry
	Log     *logrus.Logger

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewHandler creates a new handler.
func NewHandler(store Store, service *penalty.CalculationService, rates *engine.Registry, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store:   store,
		Service: service,
		Rates:   rates,
		Log:     log,
	}
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	obs, err := h.Store.ListUnpaidObligations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list obligations", err)
		return
	}
	out := make([]ObligationDTO, 0, len(obs))
	for i := range obs {
		out = append(out, toObligationDTO(&obs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	var req CreateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" || req.ClientRef == "" {
		writeError(w, http.StatusBadRequest, "id and client_ref are required", nil)
		return
	}

	feeAmount, err := decimal.NewFromString(req.FeeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fee_amount", err)
		return
	}
	created, err := engine.ParseDate(req.CreatedDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid created_date", err)
		return
	}
	deadline, err := engine.ParseDate(req.ComplianceDeadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid compliance_deadline", err)
		return
	}

	ob := &penalty.Obligation{
		ID:                 penalty.ObligationID(req.ID),
		ClientRef:          req.ClientRef,
		FeeAmount:          feeAmount,
		InvoiceNumber:      ledger.InvoiceNumber(req.InvoiceNumber),
		PenaltyStatus:      penalty.StatusNone,
		CreatedAt:          created,
		ComplianceDeadline: deadline,
		Supplementary:      req.Supplementary,
	}
	if err := h.Store.SaveObligation(r.Context(), ob); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save obligation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObligationDTO(ob))
}

func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	id := penalty.ObligationID(chi.URLParam(r, "id"))
	ob, err := h.Store.GetObligation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get obligation", err)
		return
	}
	if ob == nil {
		writeError(w, http.StatusNotFound, "obligation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(ob))
}

func (h *Handler) ListObligationPenalties(w http.ResponseWriter, r *http.Request) {
	id := penalty.ObligationID(chi.URLParam(r, "id"))
	ps, err := h.Store.PenaltiesByObligation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list penalties", err)
		return
	}
	out := make([]PenaltyDTO, 0, len(ps))
	for i := range ps {
		out = append(out, toPenaltyDTO(&ps[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// PENALTY CALCULATION HANDLERS
// =============================================================================

func (h *Handler) GetOverduePenalty(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, penalty.KindAutomaticOverdue, false)
}

func (h *Handler) FinalizeOverduePenalty(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, penalty.KindAutomaticOverdue, true)
}

func (h *Handler) GetLateSubmissionPenalty(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, penalty.KindLateSubmission, false)
}

func (h *Handler) FinalizeLateSubmissionPenalty(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, penalty.KindLateSubmission, true)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request, kind penalty.Kind, finalize bool) {
	id := penalty.ObligationID(chi.URLParam(r, "id"))
	opts := penalty.Options{Finalize: finalize}

	// as_of pins the last simulated day, for projections into a known window.
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		d, err := engine.ParseDate(asOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of date", err)
			return
		}
		opts.AccrualFinal = &d
	}

	var (
		res *penalty.Result
		err error
	)
	switch kind {
	case penalty.KindLateSubmission:
		res, err = h.Service.CalculateLateSubmission(r.Context(), id, opts)
	default:
		res, err = h.Service.CalculateOverdue(r.Context(), id, opts)
	}
	if err != nil {
		h.writeCalculationError(w, err)
		return
	}

	status := http.StatusOK
	if finalize && res != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, toResultDTO(res))
}

func (h *Handler) writeCalculationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrObligationNotFound):
		writeError(w, http.StatusNotFound, "obligation not found", err)
	case errors.Is(err, engine.ErrMissingInvoice):
		writeError(w, http.StatusUnprocessableEntity, "obligation has no ledger invoice", err)
	case errors.Is(err, engine.ErrRateNotFound):
		writeError(w, http.StatusInternalServerError, "rate table gap", err)
	case engine.IsRetryable(err):
		writeError(w, http.StatusBadGateway, "external ledger error", err)
	default:
		writeError(w, http.StatusInternalServerError, "calculation failed", err)
	}
}

// =============================================================================
// ACCRUAL HISTORY HANDLERS
// =============================================================================

func (h *Handler) GetAccruals(w http.ResponseWriter, r *http.Request) {
	id := penalty.PenaltyID(chi.URLParam(r, "id"))
	p, err := h.Store.GetPenalty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get penalty", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "penalty not found", nil)
		return
	}

	rows, err := h.Store.Accruals(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accruals", err)
		return
	}
	out := make([]AccrualDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAccrualDTO(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RATE TABLE HANDLERS
// =============================================================================

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	periods := h.Rates.Periods()
	out := make([]RatePeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, toRatePeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ReplaceRates swaps the live rate table. The body is the same JSON format
// as the startup rate file; overlap validation happens before anything is
// persisted or made live.
func (h *Handler) ReplaceRates(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	periods, err := factory.ParseRates(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rate table", err)
		return
	}
	if err := h.Store.ReplaceRatePeriods(r.Context(), periods); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist rate table", err)
		return
	}
	h.Rates.Replace(periods)

	h.Log.WithField("periods", len(periods)).Info("rate table replaced")

	out := make([]RatePeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, toRatePeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
