package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/service"
)

const dateLayout = "2006-01-02"

// LedgerService is the application layer the handlers call into
type LedgerService interface {
	CreatePortfolio(ctx context.Context, userID, name string, openingCash decimal.Decimal, isDefault bool) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error)
	GetPortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) error
	AdjustCash(ctx context.Context, userID string, portfolioID uuid.UUID, amount decimal.Decimal) (*models.Portfolio, error)

	ApplyTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error)
	RecordExternalTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error)
	AmendTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID, fields models.TransactionAmendment) (*models.Transaction, error)
	RemoveTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) error
	GetTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error)

	GetHoldings(ctx context.Context, userID string, portfolioID uuid.UUID) ([]*models.Holding, error)
	GetTaxLots(ctx context.Context, userID string, portfolioID uuid.UUID, symbol string, includeClosed bool) ([]*models.TaxLot, error)
	GetRealizedGains(ctx context.Context, userID string, portfolioID uuid.UUID, f models.GainsFilter) (*models.RealizedGainsReport, error)
	GetValuation(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Valuation, error)

	UpsertQuotes(ctx context.Context, quotes []*models.DailyQuote) error
	GetQuoteHistory(ctx context.Context, symbol string, from, to time.Time) ([]*models.DailyQuote, error)
}

// Pinger is a dependency the health check reports on
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc    LedgerService
	checks map[string]Pinger
}

// NewHandler creates a new Handler
func NewHandler(svc LedgerService) *Handler {
	return &Handler{
		svc:    svc,
		checks: make(map[string]Pinger),
	}
}

// WithHealthCheck adds a named dependency to GET /health
func (h *Handler) WithHealthCheck(name string, p Pinger) *Handler {
	h.checks[name] = p
	return h
}

type createPortfolioRequest struct {
	Name        string          `json:"name"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	IsDefault   bool            `json:"is_default"`
}

type cashRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transactionRequest struct {
	Symbol     string          `json:"symbol"`
	Type       string          `json:"type"`
	Shares     decimal.Decimal `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Fees       decimal.Decimal `json:"fees"`
	ExecutedAt time.Time       `json:"executed_at"`
	Notes      string          `json:"notes"`
	Source     string          `json:"source"`
	ExternalID string          `json:"external_id"`
}

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.svc.CreatePortfolio(r.Context(), userID(r), req.Name, req.OpeningCash, req.IsDefault)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// ListPortfolios handles GET /portfolios
func (h *Handler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.svc.ListPortfolios(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}

	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /portfolios/{id}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPortfolio(r.Context(), userID(r), portfolioID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE /portfolios/{id}
func (h *Handler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeletePortfolio(r.Context(), userID(r), portfolioID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdjustCash handles POST /portfolios/{id}/cash
func (h *Handler) AdjustCash(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req cashRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.svc.AdjustCash(r.Context(), userID(r), portfolioID, req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// ListTransactions handles GET /portfolios/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	f := models.TransactionFilter{Symbol: q.Get("symbol")}
	var err error
	if f.Limit, err = queryInt(q.Get("limit")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if f.Offset, err = queryInt(q.Get("offset")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	txs, err := h.svc.ListTransactions(r.Context(), userID(r), portfolioID, f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}

	respondJSON(w, http.StatusOK, txs)
}

// CreateTransaction handles POST /portfolios/{id}/transactions. A request
// carrying an external id is recorded at most once per source.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := models.Transaction{
		Symbol:     req.Symbol,
		Type:       req.Type,
		Shares:     req.Shares,
		Price:      req.Price,
		Fees:       req.Fees,
		ExecutedAt: req.ExecutedAt,
		Notes:      req.Notes,
		Source:     req.Source,
		ExternalID: req.ExternalID,
	}

	var tx *models.Transaction
	var err error
	if req.ExternalID != "" {
		tx, err = h.svc.RecordExternalTransaction(r.Context(), userID(r), portfolioID, input)
	} else {
		tx, err = h.svc.ApplyTransaction(r.Context(), userID(r), portfolioID, input)
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}

// GetTransaction handles GET /portfolios/{id}/transactions/{txId}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}

	tx, err := h.svc.GetTransaction(r.Context(), userID(r), portfolioID, txID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// AmendTransaction handles PATCH /portfolios/{id}/transactions/{txId}
func (h *Handler) AmendTransaction(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}
	var fields models.TransactionAmendment
	if !decodeBody(w, r, &fields) {
		return
	}

	tx, err := h.svc.AmendTransaction(r.Context(), userID(r), portfolioID, txID, fields)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// RemoveTransaction handles DELETE /portfolios/{id}/transactions/{txId}
func (h *Handler) RemoveTransaction(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}

	if err := h.svc.RemoveTransaction(r.Context(), userID(r), portfolioID, txID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHoldings handles GET /portfolios/{id}/holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	holdings, err := h.svc.GetHoldings(r.Context(), userID(r), portfolioID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}

	respondJSON(w, http.StatusOK, holdings)
}

// GetTaxLots handles GET /portfolios/{id}/lots?symbol=&include_closed=
func (h *Handler) GetTaxLots(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	includeClosed := false
	if raw := q.Get("include_closed"); raw != "" {
		var err error
		if includeClosed, err = strconv.ParseBool(raw); err != nil {
			respondError(w, http.StatusBadRequest, "invalid include_closed")
			return
		}
	}

	lots, err := h.svc.GetTaxLots(r.Context(), userID(r), portfolioID, q.Get("symbol"), includeClosed)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if lots == nil {
		lots = []*models.TaxLot{}
	}

	respondJSON(w, http.StatusOK, lots)
}

// GetRealizedGains handles GET /portfolios/{id}/gains?year=&symbol=
func (h *Handler) GetRealizedGains(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	year, err := queryInt(q.Get("year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid year")
		return
	}

	report, err := h.svc.GetRealizedGains(r.Context(), userID(r), portfolioID, models.GainsFilter{
		Year:   year,
		Symbol: q.Get("symbol"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetValuation handles GET /portfolios/{id}/valuation
func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	v, err := h.svc.GetValuation(r.Context(), userID(r), portfolioID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, v)
}

// UpsertQuotes handles PUT /quotes
func (h *Handler) UpsertQuotes(w http.ResponseWriter, r *http.Request) {
	var quotes []*models.DailyQuote
	if !decodeBody(w, r, &quotes) {
		return
	}

	if err := h.svc.UpsertQuotes(r.Context(), quotes); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"upserted": len(quotes)})
}

// GetQuoteHistory handles GET /quotes/{symbol}?from=&to=. Dates are
// YYYY-MM-DD and default to the last 30 days.
func (h *Handler) GetQuoteHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	q := r.URL.Query()

	to := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -30)
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		from = parsed
	}

	quotes, err := h.svc.GetQuoteHistory(r.Context(), symbol, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if quotes == nil {
		quotes = []*models.DailyQuote{}
	}

	respondJSON(w, http.StatusOK, quotes)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "healthy"}
	code := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			status[name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}

	respondJSON(w, code, status)
}

// statusFor maps ledger and service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, code, "internal error")
		return
	}
	respondError(w, code, err.Error())
}

func userID(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
