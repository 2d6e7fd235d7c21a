package services

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/projector"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
)

// LeadService serves leads projected through the caller's entitlements.
type LeadService struct {
	repomanager repomanager.RepositoryManager
	schema      projector.Schema
	cache       EntitlementCache
	logger      logging.Logger
}

// NewLeadService wires a LeadService. cache may be nil.
func NewLeadService(m repomanager.RepositoryManager, cache EntitlementCache, logger logging.Logger) *LeadService {
	return &LeadService{
		repomanager: m,
		schema:      projector.LeadSchema,
		cache:       cache,
		logger:      logger.With("module", "leads"),
	}
}

// Get returns the public fields of leadID plus every group userID unlocked.
func (s *LeadService) Get(ctx context.Context, userID, leadID string) (*models.ProjectedLead, error) {
	if err := validLeadID(leadID); err != nil {
		return nil, err
	}

	lead, err := s.repomanager.Leads().Get(ctx, leadID)
	if err != nil {
		return nil, dbx.Classify(err)
	}

	groups, err := s.groups(ctx, userID, leadID)
	if err != nil {
		return nil, dbx.Classify(err)
	}

	return &models.ProjectedLead{
		LeadID:   lead.ID,
		Fields:   projector.Reveal(lead.Fields(), s.schema, projector.Set(groups)),
		Unlocked: groups,
	}, nil
}

func (s *LeadService) groups(ctx context.Context, userID, leadID string) ([]string, error) {
	if s.cache != nil {
		if groups, ok := s.cache.Get(ctx, userID, leadID); ok {
			return groups, nil
		}
	}

	groups, err := s.repomanager.Entitlements().ListGroups(ctx, userID, leadID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Fill(ctx, userID, leadID, groups)
	}
	return groups, nil
}
