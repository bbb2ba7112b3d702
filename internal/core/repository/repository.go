package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/cashledger/internal/core/models"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidOwner       = errors.New("owner id is required")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// LedgerRepository is the append-only transaction store. Every call is
// scoped to a single owner.
type LedgerRepository interface {
	// Append validates and persists a draft atomically.
	Append(ctx context.Context, draft models.TransactionDraft) (*models.Transaction, error)
	// List returns the owner's transactions newest first. limit <= 0 means all.
	List(ctx context.Context, ownerID string, limit int) ([]models.Transaction, error)
	// Totals returns the owner's deposit and withdrawal sums.
	Totals(ctx context.Context, ownerID string) (models.Totals, error)
}

// ValidateDraft checks the fields every store requires before a write.
func ValidateDraft(draft models.TransactionDraft) error {
	if draft.OwnerID == "" {
		return ErrInvalidOwner
	}
	if !draft.Kind.Valid() {
		return ErrInvalidKind
	}
	if draft.Amount <= 0 || draft.Amount > models.MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}
