package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/pricing"
	"github.com/dmitrijs2005/leadkeeper/internal/server/projector"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

// errOwnedMeanwhile aborts the charging transaction when another request
// granted the same entitlement first.
var errOwnedMeanwhile = errors.New("entitlement granted concurrently")

// PurchaseService turns a request for one field-group of one lead into at
// most one debit and one entitlement.
//
// States: REQUESTED -> ALREADY_OWNED, or REQUESTED -> CHARGING -> CHARGED or
// DECLINED. Debit and grant commit together or not at all.
type PurchaseService struct {
	repomanager repomanager.RepositoryManager
	prices      *pricing.PriceList
	schema      projector.Schema
	cache       EntitlementCache
	logger      logging.Logger
}

// NewPurchaseService wires a PurchaseService. cache may be nil.
func NewPurchaseService(m repomanager.RepositoryManager, prices *pricing.PriceList, cache EntitlementCache, logger logging.Logger) *PurchaseService {
	return &PurchaseService{
		repomanager: m,
		prices:      prices,
		schema:      projector.LeadSchema,
		cache:       cache,
		logger:      logger.With("module", "purchase"),
	}
}

// Purchase unlocks fieldGroup of leadID for userID. Repeating a purchase is
// free and reports PurchaseStatusAlreadyOwned with the current balance. A
// concurrency conflict is retried once before it is returned.
func (s *PurchaseService) Purchase(ctx context.Context, userID, leadID, fieldGroup string) (*models.PurchaseResult, error) {
	price, err := s.prices.PriceOf(fieldGroup)
	if err == nil && !s.schema.HasGroup(fieldGroup) {
		err = fmt.Errorf("%w: %q has a price but no fields", common.ErrUnknownFieldGroup, fieldGroup)
	}
	if err != nil {
		s.logger.Error(ctx, "purchase of unconfigured field group", "field_group", fieldGroup, "error", err)
		return nil, err
	}
	if err := validLeadID(leadID); err != nil {
		return nil, err
	}

	owned, err := s.repomanager.Entitlements().Has(ctx, userID, leadID, fieldGroup)
	if err != nil {
		return nil, dbx.Classify(err)
	}

	var result *models.PurchaseResult
	if owned {
		result, err = s.alreadyOwned(ctx, userID, leadID, fieldGroup)
	} else {
		result, err = s.charge(ctx, userID, leadID, fieldGroup, price)
		if err != nil && dbx.IsRetryable(err) {
			s.logger.Warn(ctx, "purchase conflict, retrying", "user_id", userID, "lead_id", leadID, "field_group", fieldGroup, "error", err)
			result, err = s.charge(ctx, userID, leadID, fieldGroup, price)
		}
	}
	if err != nil {
		if isExpected(err) {
			s.logger.Info(ctx, "purchase declined", "user_id", userID, "lead_id", leadID, "field_group", fieldGroup, "reason", err.Error())
		} else {
			s.logger.Error(ctx, "purchase failed", "user_id", userID, "lead_id", leadID, "field_group", fieldGroup, "error", err)
		}
		return nil, err
	}

	// also on already_owned, which repairs an entry filled before the grant
	// and recreated after it expired
	if s.cache != nil {
		s.cache.Grant(ctx, userID, leadID, fieldGroup)
	}
	if result.Status == common.PurchaseStatusCharged {
		s.logger.Info(ctx, "purchase charged",
			"user_id", userID, "lead_id", leadID, "field_group", fieldGroup,
			"price", price.String(), "balance_after", result.BalanceAfter.String(), "transaction_id", result.TransactionID)
	}
	return result, nil
}

func (s *PurchaseService) charge(ctx context.Context, userID, leadID, fieldGroup string, price decimal.Decimal) (*models.PurchaseResult, error) {
	var result *models.PurchaseResult

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		// serializes this user's purchases until commit
		if _, err := repos.Ledger().LockBalance(ctx, userID); err != nil {
			return err
		}

		owned, err := repos.Entitlements().Has(ctx, userID, leadID, fieldGroup)
		if err != nil {
			return err
		}
		if owned {
			return errOwnedMeanwhile
		}

		lead, err := repos.Leads().Get(ctx, leadID)
		if err != nil {
			return err
		}

		tx, err := repos.Ledger().DebitAndRecord(ctx, userID, price, leadID, fieldGroup)
		if err != nil {
			return err
		}

		_, created, err := repos.Entitlements().Grant(ctx, userID, leadID, fieldGroup)
		if err != nil {
			return err
		}
		if !created {
			return errOwnedMeanwhile
		}

		result = &models.PurchaseResult{
			Status:        common.PurchaseStatusCharged,
			LeadID:        leadID,
			FieldGroup:    fieldGroup,
			Fields:        projector.GroupFields(lead.Fields(), s.schema, fieldGroup),
			BalanceAfter:  tx.BalanceAfter,
			TransactionID: tx.ID,
		}
		return nil
	})
	if errors.Is(err, errOwnedMeanwhile) {
		return s.alreadyOwned(ctx, userID, leadID, fieldGroup)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PurchaseService) alreadyOwned(ctx context.Context, userID, leadID, fieldGroup string) (*models.PurchaseResult, error) {
	balance, err := s.repomanager.Ledger().GetBalance(ctx, userID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	lead, err := s.repomanager.Leads().Get(ctx, leadID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return &models.PurchaseResult{
		Status:       common.PurchaseStatusAlreadyOwned,
		LeadID:       leadID,
		FieldGroup:   fieldGroup,
		Fields:       projector.GroupFields(lead.Fields(), s.schema, fieldGroup),
		BalanceAfter: balance,
	}, nil
}
