// Package balance derives an owner's balance from the ledger.
package balance

import (
	"context"
	"fmt"

	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/Nzyazin/cashledger/internal/core/repository"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	// ModeRunning reads the store's per-owner totals.
	ModeRunning Mode = "running"
	// ModeRecompute folds the owner's full history on every call.
	ModeRecompute Mode = "recompute"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRunning, ModeRecompute:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown balance mode %q", s)
	}
}

type Aggregator struct {
	repo repository.LedgerRepository
	mode Mode
	log  logger.Logger
}

func NewAggregator(repo repository.LedgerRepository, mode Mode, log logger.Logger) *Aggregator {
	if mode == "" {
		mode = ModeRunning
	}
	return &Aggregator{repo: repo, mode: mode, log: log}
}

// MinorUnits returns deposits minus withdrawals for the owner, in minor units.
func (a *Aggregator) MinorUnits(ctx context.Context, ownerID string) (int64, error) {
	if a.mode == ModeRecompute {
		txs, err := a.repo.List(ctx, ownerID, 0)
		if err != nil {
			a.log.Error("Balance recompute failed",
				logger.StringField("owner_id", ownerID),
				logger.ErrorField("error", err))
			return 0, fmt.Errorf("list history: %w", err)
		}
		return Fold(txs), nil
	}

	totals, err := a.repo.Totals(ctx, ownerID)
	if err != nil {
		a.log.Error("Balance totals failed",
			logger.StringField("owner_id", ownerID),
			logger.ErrorField("error", err))
		return 0, fmt.Errorf("read totals: %w", err)
	}
	return totals.Balance(), nil
}

func (a *Aggregator) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	minor, err := a.MinorUnits(ctx, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.FromMinorUnits(minor), nil
}

// Fold sums the signed effect of every transaction. Order does not matter.
func Fold(txs []models.Transaction) int64 {
	var totals models.Totals
	for _, tx := range txs {
		totals.Apply(tx)
	}
	return totals.Balance()
}
