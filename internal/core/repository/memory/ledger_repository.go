package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/repository"
	"github.com/google/uuid"
)

// ownerLedger holds one owner's history. mu is the owner's serialization point.
type ownerLedger struct {
	mu          sync.RWMutex
	txs         []models.Transaction
	totals      models.Totals
	lastCreated time.Time
}

type memoryLedgerRepo struct {
	owners sync.Map // owner id -> *ownerLedger
	seq    atomic.Int64
	now    func() time.Time
	log    logger.Logger
}

type Option func(*memoryLedgerRepo)

// WithClock replaces time.Now for created_at assignment.
func WithClock(now func() time.Time) Option {
	return func(r *memoryLedgerRepo) {
		r.now = now
	}
}

func NewMemoryLedgerRepo(log logger.Logger, opts ...Option) repository.LedgerRepository {
	r := &memoryLedgerRepo{
		now: time.Now,
		log: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *memoryLedgerRepo) ledger(ownerID string) *ownerLedger {
	if l, ok := r.owners.Load(ownerID); ok {
		return l.(*ownerLedger)
	}
	l, _ := r.owners.LoadOrStore(ownerID, &ownerLedger{})
	return l.(*ownerLedger)
}

func (r *memoryLedgerRepo) Append(ctx context.Context, draft models.TransactionDraft) (*models.Transaction, error) {
	if err := repository.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := r.ledger(draft.OwnerID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if draft.RejectOverdraft && draft.Kind == models.KindWithdrawal && l.totals.Balance() < draft.Amount {
		r.log.Warn("Overdraft rejected",
			logger.StringField("owner_id", draft.OwnerID),
			logger.Int64Field("balance", l.totals.Balance()),
			logger.Int64Field("requested", draft.Amount))
		return nil, repository.ErrInsufficientFunds
	}

	createdAt := r.now().UTC().Truncate(time.Microsecond)
	if createdAt.Before(l.lastCreated) {
		createdAt = l.lastCreated
	}

	tx := models.Transaction{
		Seq:         r.seq.Add(1),
		ID:          uuid.New(),
		OwnerID:     draft.OwnerID,
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Description: draft.Description,
		CreatedAt:   createdAt,
	}

	l.txs = append(l.txs, tx)
	l.totals.Apply(tx)
	l.lastCreated = createdAt

	return &tx, nil
}

func (r *memoryLedgerRepo) List(ctx context.Context, ownerID string, limit int) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, ok := r.owners.Load(ownerID)
	if !ok {
		return []models.Transaction{}, nil
	}
	l := v.(*ownerLedger)

	l.mu.RLock()
	result := make([]models.Transaction, len(l.txs))
	copy(result, l.txs)
	l.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Seq < result[j].Seq
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryLedgerRepo) Totals(ctx context.Context, ownerID string) (models.Totals, error) {
	if err := ctx.Err(); err != nil {
		return models.Totals{}, err
	}

	v, ok := r.owners.Load(ownerID)
	if !ok {
		return models.Totals{}, nil
	}
	l := v.(*ownerLedger)

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals, nil
}
