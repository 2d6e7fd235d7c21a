package grpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// message is a typed request or response that can be written to the wire.
type message interface {
	toStruct() (*structpb.Struct, error)
}

func (r *PurchaseRequest) toStruct() (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"lead_id":     structpb.NewStringValue(r.LeadID),
		"field_group": structpb.NewStringValue(r.FieldGroup),
	}}, nil
}

func (r *PurchaseRequest) fromStruct(s *structpb.Struct) (err error) {
	if r.LeadID, err = stringField(s, "lead_id"); err != nil {
		return err
	}
	r.FieldGroup, err = stringField(s, "field_group")
	return err
}

func (r *PurchaseResponse) toStruct() (*structpb.Struct, error) {
	fields, err := fieldsValue(r.Fields)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"status":        structpb.NewStringValue(r.Status),
		"lead_id":       structpb.NewStringValue(r.LeadID),
		"field_group":   structpb.NewStringValue(r.FieldGroup),
		"fields":        fields,
		"balance_after": structpb.NewStringValue(r.BalanceAfter),
	}}
	if r.TransactionID != "" {
		out.Fields["transaction_id"] = structpb.NewStringValue(r.TransactionID)
	}
	return out, nil
}

func (r *PurchaseResponse) fromStruct(s *structpb.Struct) (err error) {
	if r.Status, err = stringField(s, "status"); err != nil {
		return err
	}
	if r.LeadID, err = stringField(s, "lead_id"); err != nil {
		return err
	}
	if r.FieldGroup, err = stringField(s, "field_group"); err != nil {
		return err
	}
	if r.BalanceAfter, err = stringField(s, "balance_after"); err != nil {
		return err
	}
	if r.TransactionID, err = stringField(s, "transaction_id"); err != nil {
		return err
	}
	r.Fields = s.GetFields()["fields"].GetStructValue().AsMap()
	return nil
}

func (r *GetLeadRequest) toStruct() (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"lead_id": structpb.NewStringValue(r.LeadID),
	}}, nil
}

func (r *GetLeadRequest) fromStruct(s *structpb.Struct) (err error) {
	r.LeadID, err = stringField(s, "lead_id")
	return err
}

func (r *GetLeadResponse) toStruct() (*structpb.Struct, error) {
	fields, err := fieldsValue(r.Fields)
	if err != nil {
		return nil, err
	}
	unlocked := make([]*structpb.Value, 0, len(r.Unlocked))
	for _, g := range r.Unlocked {
		unlocked = append(unlocked, structpb.NewStringValue(g))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"lead_id":  structpb.NewStringValue(r.LeadID),
		"fields":   fields,
		"unlocked": structpb.NewListValue(&structpb.ListValue{Values: unlocked}),
	}}, nil
}

func (r *GetLeadResponse) fromStruct(s *structpb.Struct) (err error) {
	if r.LeadID, err = stringField(s, "lead_id"); err != nil {
		return err
	}
	r.Fields = s.GetFields()["fields"].GetStructValue().AsMap()
	r.Unlocked = []string{}
	for _, v := range s.GetFields()["unlocked"].GetListValue().GetValues() {
		g, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return invalidField("unlocked")
		}
		r.Unlocked = append(r.Unlocked, g.StringValue)
	}
	return nil
}

func (r *GetBalanceRequest) toStruct() (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (r *GetBalanceRequest) fromStruct(*structpb.Struct) error { return nil }

func (r *GetBalanceResponse) toStruct() (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"balance": structpb.NewStringValue(r.Balance),
	}}, nil
}

func (r *GetBalanceResponse) fromStruct(s *structpb.Struct) (err error) {
	r.Balance, err = stringField(s, "balance")
	return err
}

// stringField reads name from s. A missing or null value reads as "".
func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", invalidField(name)
	}
}

func invalidField(name string) error {
	return status.Errorf(codes.InvalidArgument, "%s: %s must be a string", common.KindInvalidRequest, name)
}

// fieldsValue converts projected lead fields. JSON documents keep their
// structure and timestamps are written as RFC 3339, as on the REST API.
func fieldsValue(fields map[string]any) (*structpb.Value, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for name, v := range fields {
		var (
			val *structpb.Value
			err error
		)
		switch v := v.(type) {
		case json.RawMessage:
			val = &structpb.Value{}
			err = protojson.Unmarshal(v, val)
		case time.Time:
			val = structpb.NewStringValue(v.Format(time.RFC3339Nano))
		default:
			val, err = structpb.NewValue(v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out.Fields[name] = val
	}
	return structpb.NewStructValue(out), nil
}
