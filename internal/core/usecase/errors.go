package usecase

import (
	"errors"

	"github.com/Nzyazin/cashledger/internal/core/repository"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidLimit       = errors.New("limit must be at least 1")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// classify maps store errors onto the API taxonomy. Unknown errors pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInvalidAmount):
		return errors.Join(ErrInvalidAmount, err)
	case errors.Is(err, repository.ErrInvalidKind):
		return errors.Join(ErrInvalidKind, err)
	case errors.Is(err, repository.ErrInvalidOwner):
		return errors.Join(ErrUnauthenticated, err)
	case errors.Is(err, repository.ErrInsufficientFunds):
		return errors.Join(ErrInsufficientFunds, err)
	case errors.Is(err, repository.ErrStorageUnavailable):
		return errors.Join(ErrStorageUnavailable, err)
	default:
		return err
	}
}
