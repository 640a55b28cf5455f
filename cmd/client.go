package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/profilesync/internal/api/grpc/syncapi"
	"github.com/dtroode/profilesync/internal/config"
	"github.com/dtroode/profilesync/internal/token"
)

type clientOptions struct {
	Address string
	Token   string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Address, "addr", "localhost:50061", "control API address")
	cmd.Flags().StringVar(&o.Token, "token", "", "bearer token (see the token command)")
}

// dial connects to the control API and returns a context carrying the token.
func (o *clientOptions) dial(ctx context.Context) (*syncapi.Client, context.Context, func() error, error) {
	conn, err := grpc.NewClient(o.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to %s: %w", o.Address, err)
	}
	if o.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+o.Token)
	}
	return syncapi.NewClient(conn), ctx, conn.Close, nil
}

func newStatusCommand() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue and trial status of a running agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, closeConn, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer closeConn()

			queue, err := client.GetQueueStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get queue status: %w", err)
			}
			trial, err := client.GetTrialStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get trial status: %w", err)
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"queue": queue,
				"trial": trial,
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

func newSyncCommand() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the offline queue of a running agent now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, closeConn, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer closeConn()

			res, err := client.ForceSync(ctx)
			if err != nil {
				return fmt.Errorf("failed to sync: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	opts.bind(cmd)

	return cmd
}

func newTokenCommand() *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an owner with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}

			tok, err := token.NewJWT(cfg.JWT.Secret, 0).GenerateAccessToken(ownerID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id to embed in the token")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
