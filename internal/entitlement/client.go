// Package entitlement is the gRPC client of the entitlement (subscription)
// service.
package entitlement

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/profilesync/internal/model"
	"github.com/dtroode/profilesync/internal/service"
	"github.com/dtroode/profilesync/internal/structcodec"
)

const (
	getStatusMethod           = "/entitlements.v1.Entitlements/GetStatus"
	createTrialPurchaseMethod = "/entitlements.v1.Entitlements/CreateTrialPurchase"
)

var _ model.EntitlementService = (*Client)(nil)

// Client calls the entitlement service. Requests and responses are
// google.protobuf.Struct messages.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a new Client over conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// GetStatus returns the billing view of ownerID.
func (c *Client) GetStatus(ctx context.Context, ownerID string) (model.EntitlementStatus, error) {
	req, err := ownerRequest(ownerID)
	if err != nil {
		return model.EntitlementStatus{}, err
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, getStatusMethod, req, resp); err != nil {
		return model.EntitlementStatus{}, remoteError("get_entitlement_status", err)
	}

	var status model.EntitlementStatus
	if err := structcodec.Decode(resp, &status); err != nil {
		return model.EntitlementStatus{}, model.NewRemoteError(model.CodeInternal, "get_entitlement_status", err)
	}
	return status, nil
}

// CreateTrialPurchase grants the trial entitlement to ownerID.
func (c *Client) CreateTrialPurchase(ctx context.Context, ownerID string) error {
	req, err := ownerRequest(ownerID)
	if err != nil {
		return err
	}

	if err := c.conn.Invoke(ctx, createTrialPurchaseMethod, req, &structpb.Struct{}); err != nil {
		return remoteError("create_trial_purchase", err)
	}
	return nil
}

func ownerRequest(ownerID string) (*structpb.Struct, error) {
	if ownerID == "" {
		return nil, model.NewValidationError("owner_id", model.ErrOwnerRequired.Error())
	}

	req, err := structpb.NewStruct(map[string]any{"ownerId": ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}

func remoteError(op string, err error) error {
	code, ok := service.ErrorCodeOf(err)
	if !ok {
		code = model.CodeUnknown
	}
	return model.NewRemoteError(code, op, err)
}
