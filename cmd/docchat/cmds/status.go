package cmds

import (
	"fmt"
	"time"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/documents"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := a.client.Health(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", a.client.BaseURL())
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 10*time.Second, "Give up after this long, 0 to wait forever")
	return cmd
}

type whoami struct {
	UserID        string `json:"user_id" yaml:"user_id"`
	APIURL        string `json:"api_url" yaml:"api_url"`
	IdentityFile  string `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
	Conversations int    `json:"conversations" yaml:"conversations"`
	Documents     int    `json:"documents" yaml:"documents"`
}

func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user id and what the backend holds for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var conversations []conversation.Summary
			var docs []documents.Summary
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				var err error
				conversations, err = a.client.ListConversations(ctx, a.userID)
				return err
			})
			eg.Go(func() error {
				var err error
				docs, err = a.client.ListDocuments(ctx, a.userID)
				return err
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			ret := whoami{
				UserID:        a.userID,
				APIURL:        a.client.BaseURL(),
				Conversations: len(conversations),
				Documents:     len(docs),
			}
			if a.settings.UserID == "" {
				if path, err := a.settings.IdentityPath(); err == nil {
					ret.IdentityFile = path
				}
			}
			return a.printOutput(cmd.OutOrStdout(), ret)
		},
	}
}
