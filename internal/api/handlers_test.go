package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/service"
)

const testUser = "user-1"

type apiFixture struct {
	t      *testing.T
	svc    *mockService
	router http.Handler
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	svc := &mockService{}
	return &apiFixture{
		t:      t,
		svc:    svc,
		router: SetupRoutes(NewHandler(svc), testSecret),
		token:  validToken(t, testUser),
	}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreatePortfolio(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("POST", "/api/v1/portfolios", map[string]any{
		"name":         "Brokerage",
		"opening_cash": "10000.50",
		"is_default":   true,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	p := decodeResponse[models.Portfolio](t, rec)
	assert.Equal(t, "Brokerage", p.Name)
	assert.Equal(t, testUser, p.UserID)
	assert.True(t, p.CashBalance.Equal(decimal.RequireFromString("10000.50")))
	assert.True(t, p.IsDefault)
}

func TestCreatePortfolio_badBody(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("POST", "/api/v1/portfolios", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPortfolios_emptyIsArray(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/v1/portfolios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestPortfolioRoutes_requireToken(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest("GET", "/api/v1/portfolios", nil)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPortfolio_invalidID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/v1/portfolios/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePortfolio(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()

	rec := f.do("DELETE", "/api/v1/portfolios/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, f.svc.LastPortfolioID)
	assert.Equal(t, testUser, f.svc.LastUserID)
}

func TestAdjustCash(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()

	rec := f.do("POST", "/api/v1/portfolios/"+id.String()+"/cash", map[string]any{"amount": "-250"})

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeResponse[models.Portfolio](t, rec)
	assert.True(t, p.CashBalance.Equal(decimal.NewFromInt(-250)))
}

func TestCreateTransaction(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()
	executed := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	rec := f.do("POST", "/api/v1/portfolios/"+id.String()+"/transactions", map[string]any{
		"symbol":      "aapl",
		"type":        "buy",
		"shares":      "10",
		"price":       "150.25",
		"fees":        "1",
		"executed_at": executed.Format(time.RFC3339),
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.svc.ApplyCalls)
	assert.Equal(t, 0, f.svc.ExternalCalls)
	assert.Equal(t, "aapl", f.svc.LastInput.Symbol)
	assert.True(t, f.svc.LastInput.Price.Equal(decimal.RequireFromString("150.25")))
	assert.True(t, f.svc.LastInput.ExecutedAt.Equal(executed))

	tx := decodeResponse[models.Transaction](t, rec)
	assert.Equal(t, id, tx.PortfolioID)
	assert.NotEqual(t, uuid.Nil, tx.ID)
}

func TestCreateTransaction_externalIDIsIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()
	body := map[string]any{
		"symbol": "MSFT", "type": "sell", "shares": "5", "price": "400",
		"source": "robinhood", "external_id": "ord-1",
	}

	rec := f.do("POST", "/api/v1/portfolios/"+id.String()+"/transactions", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.svc.ExternalCalls)
	assert.Equal(t, "ord-1", f.svc.LastInput.ExternalID)

	f.svc.Err = fmt.Errorf("%w: robinhood order ord-1", service.ErrDuplicate)
	rec = f.do("POST", "/api/v1/portfolios/"+id.String()+"/transactions", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, f.svc.ApplyCalls)
}

func TestTransactionRoutes_errorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: shares must be positive", ledger.ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: portfolio", ledger.ErrNotFound), http.StatusNotFound},
		{"insufficient funds", fmt.Errorf("%w: need 100", ledger.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{"insufficient shares", fmt.Errorf("%w: hold 5", ledger.ErrInsufficientShares), http.StatusUnprocessableEntity},
		{"conflict", fmt.Errorf("%w: lots have sales", ledger.ErrConflict), http.StatusConflict},
		{"consistency", fmt.Errorf("%w: lots drifted", ledger.ErrLedgerConsistency), http.StatusInternalServerError},
		{"storage", errStorage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.svc.Err = tt.err

			rec := f.do("POST", "/api/v1/portfolios/"+uuid.NewString()+"/transactions", map[string]any{
				"symbol": "AAPL", "type": "buy", "shares": "1", "price": "1",
			})

			assert.Equal(t, tt.want, rec.Code)
			body := decodeResponse[map[string]string](t, rec)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["error"])
			} else {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestListTransactions_filters(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()

	rec := f.do("GET", "/api/v1/portfolios/"+id.String()+"/transactions?symbol=AAPL&limit=10&offset=20", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, models.TransactionFilter{Symbol: "AAPL", Limit: 10, Offset: 20}, f.svc.LastTxFilter)

	rec = f.do("GET", "/api/v1/portfolios/"+id.String()+"/transactions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAmendTransaction(t *testing.T) {
	f := newAPIFixture(t)
	pid, txID := uuid.New(), uuid.New()
	f.svc.Transaction = &models.Transaction{ID: txID, PortfolioID: pid, Symbol: "AAPL", Price: decimal.NewFromInt(12)}

	rec := f.do("PATCH", fmt.Sprintf("/api/v1/portfolios/%s/transactions/%s", pid, txID), map[string]any{"price": "12"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, txID, f.svc.LastTxID)
	require.NotNil(t, f.svc.LastAmendment.Price)
	assert.True(t, f.svc.LastAmendment.Price.Equal(decimal.NewFromInt(12)))
	assert.Nil(t, f.svc.LastAmendment.Shares)
}

func TestRemoveTransaction(t *testing.T) {
	f := newAPIFixture(t)
	pid, txID := uuid.New(), uuid.New()

	rec := f.do("DELETE", fmt.Sprintf("/api/v1/portfolios/%s/transactions/%s", pid, txID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, txID, f.svc.LastTxID)

	f.svc.Err = fmt.Errorf("%w: buy has lot sales", ledger.ErrConflict)
	rec = f.do("DELETE", fmt.Sprintf("/api/v1/portfolios/%s/transactions/%s", pid, txID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetTransaction_invalidTxID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/transactions/nope", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHoldings(t *testing.T) {
	f := newAPIFixture(t)
	f.svc.Holdings = []*models.Holding{{Symbol: "AAPL", TotalShares: decimal.NewFromInt(10), AverageCost: decimal.NewFromInt(15)}}

	rec := f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/holdings", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	holdings := decodeResponse[[]models.Holding](t, rec)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.True(t, holdings[0].TotalShares.Equal(decimal.NewFromInt(10)))
}

func TestGetTaxLots_query(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/lots?symbol=AAPL&include_closed=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, "AAPL", f.svc.LastSymbol)
	assert.True(t, f.svc.LastIncludeAll)

	rec = f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/lots?include_closed=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRealizedGains_query(t *testing.T) {
	f := newAPIFixture(t)
	f.svc.Gains = &models.RealizedGainsReport{Records: []*models.LotSale{}}

	rec := f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/gains?year=2025&symbol=MSFT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.GainsFilter{Year: 2025, Symbol: "MSFT"}, f.svc.LastGains)

	rec = f.do("GET", "/api/v1/portfolios/"+uuid.NewString()+"/gains?year=last", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetValuation(t *testing.T) {
	f := newAPIFixture(t)
	pid := uuid.New()
	f.svc.Valuation = &models.Valuation{PortfolioID: pid, TotalValue: decimal.NewFromInt(1200)}

	rec := f.do("GET", "/api/v1/portfolios/"+pid.String()+"/valuation", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeResponse[models.Valuation](t, rec)
	assert.Equal(t, pid, v.PortfolioID)
	assert.True(t, v.TotalValue.Equal(decimal.NewFromInt(1200)))
}

func TestUpsertQuotes_requiresAdmin(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("PUT", "/api/v1/quotes", []map[string]any{
		{"symbol": "AAPL", "date": "2025-06-02T00:00:00Z", "close": "1"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.svc.LastQuotes)
}

func TestUpsertQuotes(t *testing.T) {
	f := newAPIFixture(t)
	f.token = adminToken(t, testUser)

	rec := f.do("PUT", "/api/v1/quotes", []map[string]any{
		{"symbol": "AAPL", "date": "2025-06-02T00:00:00Z", "close": "190.5"},
		{"symbol": "MSFT", "date": "2025-06-02T00:00:00Z", "close": "410"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"upserted":2}`, rec.Body.String())
	require.Len(t, f.svc.LastQuotes, 2)
	assert.True(t, f.svc.LastQuotes[0].Close.Equal(decimal.RequireFromString("190.5")))
}

func TestGetQuoteHistory_dates(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/v1/quotes/AAPL?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", f.svc.LastSymbol)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.svc.LastFrom)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), f.svc.LastTo)

	rec = f.do("GET", "/api/v1/quotes/AAPL?to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.svc.LastFrom)

	rec = f.do("GET", "/api/v1/quotes/AAPL?from=01/01/2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	svc := &mockService{}
	h := NewHandler(svc).WithHealthCheck("database", stubPinger{})
	router := SetupRoutes(h, testSecret)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())
}

func TestHealthCheck_degraded(t *testing.T) {
	svc := &mockService{}
	h := NewHandler(svc).
		WithHealthCheck("database", stubPinger{}).
		WithHealthCheck("cache", stubPinger{err: errStorage})
	router := SetupRoutes(h, testSecret)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"ok","cache":"unavailable"}`, rec.Body.String())
}
