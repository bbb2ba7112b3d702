package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Nzyazin/cashledger/internal/core/identity"
	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

var amountRegexp = regexp.MustCompile(`^-?\d{1,12}(\.\d{1,12})?$`)

const (
	defaultDepositDescription    = "Cash deposit"
	defaultWithdrawalDescription = "Cash withdrawal"
)

type LedgerHandler struct {
	usecase usecase.LedgerUsecase
	log     logger.Logger
}

type AddTransactionRequest struct {
	Kind        string          `json:"kind"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type TransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewLedgerHandler(usecase usecase.LedgerUsecase, log logger.Logger) *LedgerHandler {
	return &LedgerHandler{usecase: usecase, log: log}
}

func (h *LedgerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/balance", h.GetBalance).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/transactions", h.ListTransactions).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/transactions", h.AddTransaction).Methods(http.MethodPost)
}

// authenticated rejects the request before any input is read when no owner
// identity is attached to it.
func (h *LedgerHandler) authenticated(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := identity.OwnerFromContext(r.Context()); ok {
		return true
	}
	h.handleError(w, r, usecase.ErrUnauthenticated)
	return false
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(w, r) {
		return
	}
	balance, err := h.usecase.GetBalance(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, BalanceResponse{Balance: balance.StringFixed(models.MinorUnits)})
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(w, r) {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.log.Warn("Invalid limit", logger.StringField("limit", r.URL.Query().Get("limit")))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.usecase.ListTransactions(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := TransactionsResponse{Transactions: make([]TransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, toResponse(tx))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(w, r) {
		return
	}
	req, err := h.decodeRequest(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", string(req.Amount)), logger.ErrorField("error", err))
		h.handleError(w, r, fmt.Errorf("%w: %v", usecase.ErrInvalidAmount, err))
		return
	}

	created, err := h.usecase.AddTransaction(r.Context(), usecase.AddTransactionInput{
		Kind:        req.Kind,
		Amount:      amount,
		Description: describe(req),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toResponse(*created))
}

func (h *LedgerHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*AddTransactionRequest, error) {
	var req AddTransactionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		return nil, fmt.Errorf("invalid request payload")
	}
	return &req, nil
}

// parseAmount accepts a JSON number or a numeric string. A comma is read
// as the decimal separator. Exponent notation is not accepted.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, errors.New("amount is required")
	}

	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount format: %s", text)
		}
		text = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	}

	if !amountRegexp.MatchString(text) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %.32s", text)
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %s", text)
	}
	return amount, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, usecase.ErrInvalidLimit
	}
	return limit, nil
}

func describe(req *AddTransactionRequest) string {
	if desc := strings.TrimSpace(req.Description); desc != "" {
		return desc
	}
	kind, _ := models.ParseKind(req.Kind)
	if kind == models.KindWithdrawal {
		return defaultWithdrawalDescription
	}
	return defaultDepositDescription
}

func toResponse(tx models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		OwnerID:     tx.OwnerID,
		Kind:        string(tx.Kind),
		Amount:      models.FormatMinorUnits(tx.Amount),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
}

func (h *LedgerHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		h.log.Warn("Unauthenticated request", logger.StringField("path", r.URL.Path))
		respondWithError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, usecase.ErrInvalidAmount):
		respondWithError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, usecase.ErrInvalidKind):
		respondWithError(w, http.StatusBadRequest, "invalid transaction kind")
	case errors.Is(err, usecase.ErrInvalidLimit):
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidLimit.Error())
	case errors.Is(err, usecase.ErrInsufficientFunds):
		respondWithError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, usecase.ErrStorageUnavailable):
		h.log.Error("Storage unavailable",
			logger.StringField("path", r.URL.Path),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.log.Error("Failed to process request",
			logger.StringField("path", r.URL.Path),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "failed to process request")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
