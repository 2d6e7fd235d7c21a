package services

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

// LedgerService exposes balances, top-ups, history and the audit. Each call
// that writes runs in its own transaction.
type LedgerService struct {
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewLedgerService(m repomanager.RepositoryManager, logger logging.Logger) *LedgerService {
	return &LedgerService{repomanager: m, logger: logger.With("module", "ledger")}
}

func (s *LedgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	balance, err := s.repomanager.Ledger().GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, dbx.Classify(err)
	}
	return balance, nil
}

// Credit tops up userID by amount. Like purchases, it retries once on a
// concurrency conflict.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	credit := func() (*models.Transaction, error) {
		var t *models.Transaction
		err := s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
			var err error
			t, err = repos.Ledger().Credit(ctx, userID, amount, reason)
			return err
		})
		return t, err
	}

	t, err := credit()
	if err != nil && dbx.IsRetryable(err) {
		t, err = credit()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "balance credited", "user_id", userID, "amount", amount.String(),
		"balance_after", t.BalanceAfter.String(), "reason", reason)
	return t, nil
}

// ListTransactions returns up to limit transactions, newest first. A
// non-positive limit returns the whole history.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	list, err := s.repomanager.Ledger().ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return list, nil
}

// Audit rebuilds userID's balance from the transaction log and cross-checks
// debits against entitlements. The balance row stays locked while it runs,
// so no purchase can interleave.
func (s *LedgerService) Audit(ctx context.Context, userID string) (*models.AuditReport, error) {
	report := &models.AuditReport{UserID: userID}

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		var err error
		if report.StoredBalance, err = repos.Ledger().LockBalance(ctx, userID); err != nil {
			return err
		}
		if report.ReconstructedBalance, err = repos.Ledger().SumAmounts(ctx, userID); err != nil {
			return err
		}
		if report.DebitsWithoutGrant, err = repos.Ledger().DebitsWithoutGrant(ctx, userID); err != nil {
			return err
		}
		report.GrantsWithoutDebit, err = repos.Entitlements().GrantsWithoutDebit(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !report.Clean() {
		s.logger.Warn(ctx, "ledger audit mismatch", "user_id", userID,
			"stored", report.StoredBalance.String(), "reconstructed", report.ReconstructedBalance.String(),
			"debits_without_grant", len(report.DebitsWithoutGrant), "grants_without_debit", len(report.GrantsWithoutDebit))
	}
	return report, nil
}
