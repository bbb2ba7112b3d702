package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const transactionColumns = `seq, id, owner_id, kind, amount, description, created_at`

type postgresLedgerRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresLedgerRepo(db *sqlx.DB, log logger.Logger) repository.LedgerRepository {
	return &postgresLedgerRepo{
		db:  db,
		log: log,
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStorageUnavailable, err)
}

func (r *postgresLedgerRepo) Append(ctx context.Context, draft models.TransactionDraft) (*models.Transaction, error) {
	if err := repository.ValidateDraft(draft); err != nil {
		return nil, err
	}

	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error("Error beginning transaction", logger.ErrorField("error", err))
		return nil, unavailable("begin transaction", err)
	}

	defer func() {
		if isCommitted {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("Transaction rollback failed", logger.ErrorField("error", rbErr))
		}
	}()

	if err := r.lockOwner(ctx, tx, draft.OwnerID); err != nil {
		return nil, err
	}

	if draft.RejectOverdraft && draft.Kind == models.KindWithdrawal {
		var totals models.Totals
		if err := tx.GetContext(ctx, &totals, totalsQuery, draft.OwnerID); err != nil {
			return nil, unavailable("read balance", err)
		}
		if totals.Balance() < draft.Amount {
			r.log.Warn("Overdraft rejected",
				logger.StringField("owner_id", draft.OwnerID),
				logger.Int64Field("balance", totals.Balance()),
				logger.Int64Field("requested", draft.Amount))
			return nil, repository.ErrInsufficientFunds
		}
	}

	created, err := r.insertTransaction(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		r.log.Error("Error committing transaction", logger.ErrorField("error", err))
		return nil, unavailable("commit", err)
	}
	isCommitted = true

	return created, nil
}

// lockOwner serializes appends for one owner until the transaction ends.
func (r *postgresLedgerRepo) lockOwner(ctx context.Context, tx *sqlx.Tx, ownerID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, ownerID); err != nil {
		return unavailable("lock owner", err)
	}
	return nil
}

func (r *postgresLedgerRepo) insertTransaction(ctx context.Context, tx *sqlx.Tx, draft models.TransactionDraft) (*models.Transaction, error) {
	// created_at never goes below the owner's latest row
	const query = `
		INSERT INTO transactions (id, owner_id, kind, amount, description, created_at)
		SELECT $1, $2, $3, $4, $5,
			GREATEST(date_trunc('microseconds', clock_timestamp()), COALESCE(MAX(created_at), '-infinity'::timestamptz))
		FROM transactions
		WHERE owner_id = $2
		RETURNING ` + transactionColumns

	var created models.Transaction
	err := tx.GetContext(ctx, &created, query,
		uuid.New(),
		draft.OwnerID,
		string(draft.Kind),
		draft.Amount,
		draft.Description,
	)
	if err != nil {
		return nil, unavailable("insert transaction", err)
	}

	created.CreatedAt = created.CreatedAt.UTC()
	return &created, nil
}

func (r *postgresLedgerRepo) List(ctx context.Context, ownerID string, limit int) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, seq ASC`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	txs := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, unavailable("list transactions", err)
	}

	for i := range txs {
		txs[i].CreatedAt = txs[i].CreatedAt.UTC()
	}
	return txs, nil
}

const totalsQuery = `
	SELECT
		COALESCE(SUM(amount) FILTER (WHERE kind = 'deposit'), 0)::BIGINT AS deposits,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'withdrawal'), 0)::BIGINT AS withdrawals
	FROM transactions
	WHERE owner_id = $1`

func (r *postgresLedgerRepo) Totals(ctx context.Context, ownerID string) (models.Totals, error) {
	var totals models.Totals
	if err := r.db.GetContext(ctx, &totals, totalsQuery, ownerID); err != nil {
		return models.Totals{}, unavailable("sum transactions", err)
	}
	return totals, nil
}
