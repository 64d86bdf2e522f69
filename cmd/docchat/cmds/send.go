package cmds

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send a single message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, _ := cmd.Flags().GetString("conversation")
			chat, _ := cmd.Flags().GetBool("chat")
			noChat, _ := cmd.Flags().GetBool("no-chat")

			a, err := newApp()
			if err != nil {
				return err
			}
			i, err := a.newInteractive()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if conversationID != "" {
				if err := i.session.Load(ctx, conversationID); err != nil {
					return err
				}
			}

			result, err := i.session.Send(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Reply != nil {
				_, _ = fmt.Fprintln(out, result.Reply.Content)
				if names := result.Reply.ToolNames(); len(names) > 0 {
					_, _ = fmt.Fprintf(out, "\n(tools used: %s)\n", strings.Join(names, ", "))
				}
			}
			if result.Failed() {
				log.Debug().Err(result.Err).Msg("Send failed")
				return errors.Wrap(result.Err, "could not send message")
			}

			if !chat && (noChat || !isOutputTerminal()) {
				return nil
			}
			if !chat {
				chat, err = askForChatContinuation()
				if err != nil {
					return err
				}
			}
			if !chat {
				return nil
			}

			// the session already holds the conversation
			return runChat(ctx, i)
		},
	}

	cmd.Flags().String("conversation", "", "Continue this conversation")
	cmd.Flags().Bool("chat", false, "Continue in the chat UI after the reply")
	cmd.Flags().Bool("no-chat", false, "Never offer to continue in the chat UI")
	cmd.MarkFlagsMutuallyExclusive("chat", "no-chat")

	return cmd
}
