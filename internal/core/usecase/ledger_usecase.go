package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/cashledger/internal/core/balance"
	"github.com/Nzyazin/cashledger/internal/core/identity"
	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/metrics"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/repository"
	"github.com/shopspring/decimal"
)

// LedgerUsecase is the boundary every transport calls. The caller's
// identity is taken from the context.
type LedgerUsecase interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error)
	AddTransaction(ctx context.Context, in AddTransactionInput) (*models.Transaction, error)
}

type AddTransactionInput struct {
	Kind        string
	Amount      decimal.Decimal
	Description string
}

type ledgerUsecase struct {
	repo       repository.LedgerRepository
	aggregator *balance.Aggregator
	metrics    *metrics.LedgerMetrics
	log        logger.Logger
}

func NewLedgerUsecase(repo repository.LedgerRepository, aggregator *balance.Aggregator, m *metrics.LedgerMetrics, log logger.Logger) LedgerUsecase {
	return &ledgerUsecase{repo: repo, aggregator: aggregator, metrics: m, log: log}
}

func (uc *ledgerUsecase) authenticate(ctx context.Context) (string, error) {
	ownerID, ok := identity.OwnerFromContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return ownerID, nil
}

func (uc *ledgerUsecase) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	ownerID, err := uc.authenticate(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := uc.aggregator.Balance(ctx, ownerID)
	if err != nil {
		return decimal.Zero, classify(err)
	}
	return total, nil
}

func (uc *ledgerUsecase) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	ownerID, err := uc.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	txs, err := uc.repo.List(ctx, ownerID, limit)
	if err != nil {
		uc.log.Error("List transactions failed",
			logger.StringField("owner_id", ownerID),
			logger.ErrorField("error", err))
		return nil, classify(err)
	}
	return txs, nil
}

func (uc *ledgerUsecase) AddTransaction(ctx context.Context, in AddTransactionInput) (*models.Transaction, error) {
	ownerID, err := uc.authenticate(ctx)
	if err != nil {
		uc.metrics.ObserveTransaction(kindLabel(in.Kind), metrics.OutcomeRejected)
		return nil, err
	}

	draft, err := uc.validate(ownerID, in)
	if err != nil {
		uc.metrics.ObserveTransaction(kindLabel(in.Kind), metrics.OutcomeRejected)
		return nil, err
	}

	if draft.Kind == models.KindWithdrawal {
		if err := uc.checkBalance(ctx, draft); err != nil {
			uc.observeFailure(draft.Kind, err)
			return nil, err
		}
	}

	created, err := uc.repo.Append(ctx, draft)
	if err != nil {
		err = classify(err)
		uc.observeFailure(draft.Kind, err)
		uc.logRejected(draft, err)
		return nil, err
	}

	uc.metrics.ObserveTransaction(string(created.Kind), metrics.OutcomeCommitted)
	uc.metrics.ObserveCommittedAmount(string(created.Kind), created.Amount)
	uc.log.Info("Transaction committed",
		logger.StringField("owner_id", ownerID),
		logger.StringField("transaction_id", created.ID.String()),
		logger.StringField("kind", string(created.Kind)),
		logger.StringField("amount", models.FormatMinorUnits(created.Amount)))

	return created, nil
}

// validate runs before any write.
func (uc *ledgerUsecase) validate(ownerID string, in AddTransactionInput) (models.TransactionDraft, error) {
	kind, ok := models.ParseKind(in.Kind)
	if !ok {
		uc.log.Warn("Invalid transaction kind",
			logger.StringField("owner_id", ownerID),
			logger.StringField("kind", in.Kind))
		return models.TransactionDraft{}, ErrInvalidKind
	}

	amount, err := models.ToMinorUnits(in.Amount)
	if err != nil {
		uc.log.Warn("Invalid amount",
			logger.StringField("owner_id", ownerID),
			logger.ErrorField("error", err))
		return models.TransactionDraft{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	return models.TransactionDraft{
		OwnerID:         ownerID,
		Kind:            kind,
		Amount:          amount,
		Description:     in.Description,
		RejectOverdraft: kind == models.KindWithdrawal,
	}, nil
}

// checkBalance rejects a withdrawal the current balance cannot cover.
// The store repeats the check atomically with the append, so a concurrent
// writer cannot slip in between.
func (uc *ledgerUsecase) checkBalance(ctx context.Context, draft models.TransactionDraft) error {
	current, err := uc.aggregator.MinorUnits(ctx, draft.OwnerID)
	if err != nil {
		return classify(err)
	}
	if current < draft.Amount {
		uc.log.Warn("Insufficient funds",
			logger.StringField("owner_id", draft.OwnerID),
			logger.Int64Field("balance", current),
			logger.Int64Field("requested", draft.Amount))
		return ErrInsufficientFunds
	}
	return nil
}

func (uc *ledgerUsecase) observeFailure(kind models.Kind, err error) {
	outcome := metrics.OutcomeRejected
	if errors.Is(err, ErrStorageUnavailable) {
		outcome = metrics.OutcomeFailed
	}
	uc.metrics.ObserveTransaction(string(kind), outcome)
}

func (uc *ledgerUsecase) logRejected(draft models.TransactionDraft, err error) {
	fields := []logger.Field{
		logger.StringField("owner_id", draft.OwnerID),
		logger.StringField("kind", string(draft.Kind)),
		logger.StringField("amount", models.FormatMinorUnits(draft.Amount)),
		logger.ErrorField("error", err),
	}
	if errors.Is(err, ErrStorageUnavailable) {
		// commit status unknown to the caller; they must reconcile via ListTransactions
		uc.log.Error("Append failed", fields...)
		return
	}
	uc.log.Warn("Append rejected", fields...)
}

func kindLabel(raw string) string {
	if kind, ok := models.ParseKind(raw); ok {
		return string(kind)
	}
	return "invalid"
}
