package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nzyazin/cashledger/internal/core/identity"
	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedgerUsecase struct {
	mock.Mock
}

func (m *mockLedgerUsecase) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockLedgerUsecase) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *mockLedgerUsecase) AddTransaction(ctx context.Context, in usecase.AddTransactionInput) (*models.Transaction, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func newTestRouter(uc usecase.LedgerUsecase) *mux.Router {
	router := mux.NewRouter()
	NewLedgerHandler(uc, logger.NewNop()).RegisterRoutes(router)
	return router
}

const testOwner = "alice"

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(identity.WithOwner(req.Context(), testOwner))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doAnonymous(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestGetBalance(t *testing.T) {
	uc := new(mockLedgerUsecase)
	uc.On("GetBalance", mock.Anything).Return(decimal.RequireFromString("60"), nil)

	w := do(newTestRouter(uc), http.MethodGet, "/api/v1/balance", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"balance":"60.00"}`, w.Body.String())
}

func TestListTransactions(t *testing.T) {
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	id := uuid.New()
	uc := new(mockLedgerUsecase)
	uc.On("ListTransactions", mock.Anything, 1).Return([]models.Transaction{
		{ID: id, OwnerID: "alice", Kind: models.KindWithdrawal, Amount: 4000, Description: "rent", CreatedAt: created},
	}, nil)

	w := do(newTestRouter(uc), http.MethodGet, "/api/v1/transactions?limit=1", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body TransactionsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, id, body.Transactions[0].ID)
	assert.Equal(t, "withdrawal", body.Transactions[0].Kind)
	assert.Equal(t, "40.00", body.Transactions[0].Amount)
	assert.Equal(t, "rent", body.Transactions[0].Description)
	assert.True(t, created.Equal(body.Transactions[0].CreatedAt))
	uc.AssertExpectations(t)
}

func TestListTransactionsEmptyIsArray(t *testing.T) {
	uc := new(mockLedgerUsecase)
	uc.On("ListTransactions", mock.Anything, 0).Return([]models.Transaction{}, nil)

	w := do(newTestRouter(uc), http.MethodGet, "/api/v1/transactions", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transactions":[]}`, w.Body.String())
}

func TestListTransactionsInvalidLimit(t *testing.T) {
	for _, limit := range []string{"0", "-3", "ten", "1.5"} {
		uc := new(mockLedgerUsecase)
		w := do(newTestRouter(uc), http.MethodGet, "/api/v1/transactions?limit="+limit, "")

		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
		uc.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
	}
}

func TestAddTransaction(t *testing.T) {
	created := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     "alice",
		Kind:        models.KindDeposit,
		Amount:      10000,
		Description: "salary",
		CreatedAt:   time.Now().UTC(),
	}
	uc := new(mockLedgerUsecase)
	uc.On("AddTransaction", mock.Anything, mock.MatchedBy(func(in usecase.AddTransactionInput) bool {
		return in.Kind == "deposit" && in.Amount.Equal(decimal.RequireFromString("100.00")) && in.Description == "salary"
	})).Return(created, nil)

	w := do(newTestRouter(uc), http.MethodPost, "/api/v1/transactions", `{"kind":"deposit","amount":100.00,"description":"salary"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var body TransactionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, created.ID, body.ID)
	assert.Equal(t, "100.00", body.Amount)
	uc.AssertExpectations(t)
}

func TestAddTransactionDefaultsDescription(t *testing.T) {
	cases := map[string]string{
		`{"kind":"deposit","amount":"5"}`:                          defaultDepositDescription,
		`{"kind":"withdrawal","amount":"5","description":"   "}`:   defaultWithdrawalDescription,
		`{"kind":"Withdrawal","amount":"5,50"}`:                    defaultWithdrawalDescription,
		`{"kind":"deposit","amount":"5","description":"birthday"}`: "birthday",
	}

	for body, want := range cases {
		uc := new(mockLedgerUsecase)
		uc.On("AddTransaction", mock.Anything, mock.MatchedBy(func(in usecase.AddTransactionInput) bool {
			return in.Description == want
		})).Return(&models.Transaction{Kind: models.KindDeposit, Amount: 500}, nil)

		w := do(newTestRouter(uc), http.MethodPost, "/api/v1/transactions", body)

		assert.Equal(t, http.StatusCreated, w.Code, body)
		uc.AssertExpectations(t)
	}
}

func TestAddTransactionBadPayloads(t *testing.T) {
	cases := []struct {
		body string
		msg  string
	}{
		{`not json`, "invalid request payload"},
		{`{"kind":"deposit"}`, "invalid amount"},
		{`{"kind":"deposit","amount":null}`, "invalid amount"},
		{`{"kind":"deposit","amount":"abc"}`, "invalid amount"},
		{`{"kind":"deposit","amount":true}`, "invalid amount"},
	}

	for _, c := range cases {
		uc := new(mockLedgerUsecase)
		w := do(newTestRouter(uc), http.MethodPost, "/api/v1/transactions", c.body)

		assert.Equal(t, http.StatusBadRequest, w.Code, c.body)
		assert.Equal(t, c.msg, decodeError(t, w), c.body)
		uc.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything)
	}
}

func TestRequestsWithoutOwnerAreRejectedBeforeParsing(t *testing.T) {
	cases := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/api/v1/balance", ""},
		{http.MethodGet, "/api/v1/transactions?limit=ten", ""},
		{http.MethodPost, "/api/v1/transactions", `not json`},
		{http.MethodPost, "/api/v1/transactions", `{"kind":"deposit","amount":"abc"}`},
		{http.MethodPost, "/api/v1/transactions", `{"kind":"deposit","amount":1e20000000}`},
		{http.MethodPost, "/api/v1/transactions", `{"kind":"deposit","amount":"5"}`},
	}

	for _, c := range cases {
		uc := new(mockLedgerUsecase)
		w := doAnonymous(newTestRouter(uc), c.method, c.target, c.body)

		assert.Equal(t, http.StatusUnauthorized, w.Code, c.target+" "+c.body)
		assert.Equal(t, "unauthenticated", decodeError(t, w))
		uc.AssertNotCalled(t, "GetBalance", mock.Anything)
		uc.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
		uc.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything)
	}
}

func TestAddTransactionRejectsExponentAmounts(t *testing.T) {
	for _, amount := range []string{`1e20000000`, `"1e-20000000"`, `"1E5"`, `1.5e2`} {
		uc := new(mockLedgerUsecase)
		w := do(newTestRouter(uc), http.MethodPost, "/api/v1/transactions", `{"kind":"deposit","amount":`+amount+`}`)

		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
		assert.Equal(t, "invalid amount", decodeError(t, w), amount)
		uc.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{usecase.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{usecase.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
		{usecase.ErrInvalidKind, http.StatusBadRequest, "invalid transaction kind"},
		{usecase.ErrInsufficientFunds, http.StatusConflict, "insufficient funds"},
		{errors.Join(usecase.ErrStorageUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable, "storage unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "failed to process request"},
	}

	for _, c := range cases {
		uc := new(mockLedgerUsecase)
		uc.On("AddTransaction", mock.Anything, mock.Anything).Return(nil, c.err)

		w := do(newTestRouter(uc), http.MethodPost, "/api/v1/transactions", `{"kind":"withdrawal","amount":"1"}`)

		assert.Equal(t, c.code, w.Code, c.err.Error())
		assert.Equal(t, c.msg, decodeError(t, w))
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		`100`:          "100",
		`100.5`:        "100.5",
		`"40.00"`:      "40",
		`" 1 000,25 "`: "1000.25",
		`-5`:           "-5",
	}
	for raw, want := range cases {
		got, err := parseAmount(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), raw)
	}

	for _, raw := range []string{``, `null`, `"x"`, `[1]`, `{}`, `1e5`, `"1E5"`, `1e20000000`, `"1e-20000000"`, `"1.1234567890123"`, `"12345678901234"`, `"+5"`, `".5"`} {
		_, err := parseAmount(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
