package syncapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/profilesync/internal/structcodec"
)

// Client calls the ProfileSync service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a new Client over conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// CreateProfile creates the caller's profile.
func (c *Client) CreateProfile(ctx context.Context, req CreateProfileRequest, opts ...grpc.CallOption) (MutationResponse, error) {
	var resp MutationResponse
	err := c.invoke(ctx, CreateProfileMethod, req, &resp, opts...)
	return resp, err
}

// CreateProfileWithTrial creates the caller's profile and trial.
func (c *Client) CreateProfileWithTrial(ctx context.Context, req CreateProfileRequest, opts ...grpc.CallOption) (MutationResponse, error) {
	var resp MutationResponse
	err := c.invoke(ctx, CreateProfileWithTrialMethod, req, &resp, opts...)
	return resp, err
}

// UpdateProfile merges fields into the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest, opts ...grpc.CallOption) (MutationResponse, error) {
	var resp MutationResponse
	err := c.invoke(ctx, UpdateProfileMethod, req, &resp, opts...)
	return resp, err
}

// GetTrialStatus returns the caller's reconciled trial status.
func (c *Client) GetTrialStatus(ctx context.Context, opts ...grpc.CallOption) (TrialStatusResponse, error) {
	var resp TrialStatusResponse
	err := c.invoke(ctx, GetTrialStatusMethod, Empty{}, &resp, opts...)
	return resp, err
}

// GetQueueStatus returns the sync queue diagnostics.
func (c *Client) GetQueueStatus(ctx context.Context, opts ...grpc.CallOption) (QueueStatusResponse, error) {
	var resp QueueStatusResponse
	err := c.invoke(ctx, GetQueueStatusMethod, Empty{}, &resp, opts...)
	return resp, err
}

// ForceSync drains the sync queue now.
func (c *Client) ForceSync(ctx context.Context, opts ...grpc.CallOption) (SyncResponse, error) {
	var resp SyncResponse
	err := c.invoke(ctx, ForceSyncMethod, Empty{}, &resp, opts...)
	return resp, err
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := structcodec.Encode(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}

	if err := structcodec.Decode(out, resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
