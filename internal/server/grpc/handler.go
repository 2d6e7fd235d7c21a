package grpc

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCode = map[string]codes.Code{
	common.KindUnknownFieldGroup:   codes.InvalidArgument,
	common.KindInvalidRequest:      codes.InvalidArgument,
	common.KindInsufficientBalance: codes.FailedPrecondition,
	common.KindNotFound:            codes.NotFound,
	common.KindConcurrencyConflict: codes.Aborted,
	common.KindStoreUnavailable:    codes.Unavailable,
	common.KindUnauthorized:        codes.Unauthenticated,
	common.KindInternal:            codes.Internal,
}

// toStatus maps a service error onto a gRPC status. The error kind goes in
// the message so clients can tell e.g. insufficient_balance apart from other
// failed preconditions.
func toStatus(err error) error {
	kind := common.ErrorKind(err)
	msg := err.Error()
	switch kind {
	case common.KindInternal:
		msg = common.ErrorInternal.Error()
	case common.KindStoreUnavailable:
		msg = common.ErrStoreUnavailable.Error()
	}
	return status.Error(kindCode[kind], kind+": "+msg)
}

func userID(ctx context.Context) (string, error) {
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return id, nil
}

func (s *GRPCServer) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.LeadID == "" || req.FieldGroup == "" {
		return nil, status.Error(codes.InvalidArgument, common.KindInvalidRequest+": lead_id and field_group are required")
	}

	res, err := s.purchases.Purchase(ctx, uid, req.LeadID, req.FieldGroup)
	if err != nil {
		return nil, toStatus(err)
	}

	return &PurchaseResponse{
		Status:        res.Status,
		LeadID:        res.LeadID,
		FieldGroup:    res.FieldGroup,
		Fields:        res.Fields,
		BalanceAfter:  res.BalanceAfter.StringFixed(2),
		TransactionID: res.TransactionID,
	}, nil
}

func (s *GRPCServer) GetLead(ctx context.Context, req *GetLeadRequest) (*GetLeadResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	lead, err := s.leads.Get(ctx, uid, req.LeadID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &GetLeadResponse{LeadID: lead.LeadID, Fields: lead.Fields, Unlocked: lead.Unlocked}, nil
}

func (s *GRPCServer) GetBalance(ctx context.Context, _ *GetBalanceRequest) (*GetBalanceResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.ledger.GetBalance(ctx, uid)
	if err != nil {
		return nil, toStatus(err)
	}

	return &GetBalanceResponse{Balance: b.StringFixed(2)}, nil
}
