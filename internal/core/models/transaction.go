package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the direction of a transaction.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDeposit, KindWithdrawal:
		return k, true
	default:
		return "", false
	}
}

func (k Kind) Valid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Transaction is an immutable ledger record. Amount is in minor units and always positive.
type Transaction struct {
	Seq         int64     `json:"-" db:"seq"`
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Kind        Kind      `json:"kind" db:"kind"`
	Amount      int64     `json:"amount" db:"amount"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Delta is the signed effect of the transaction on the balance.
func (t Transaction) Delta() int64 {
	if t.Kind == KindWithdrawal {
		return -t.Amount
	}
	return t.Amount
}

// TransactionDraft is the input to a store append.
type TransactionDraft struct {
	OwnerID     string
	Kind        Kind
	Amount      int64
	Description string
	// RejectOverdraft makes the store check that the balance covers the
	// amount atomically with the append.
	RejectOverdraft bool
}

// Totals are the per-owner sums in minor units.
type Totals struct {
	Deposits    int64 `db:"deposits"`
	Withdrawals int64 `db:"withdrawals"`
}

func (t Totals) Balance() int64 {
	return t.Deposits - t.Withdrawals
}

func (t *Totals) Apply(tx Transaction) {
	switch tx.Kind {
	case KindDeposit:
		t.Deposits += tx.Amount
	case KindWithdrawal:
		t.Withdrawals += tx.Amount
	}
}
