package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/spf13/cobra"
)

func NewConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Inspect your past conversations",
	}
	cmd.AddCommand(newListConversationsCommand(), newShowConversationCommand())
	return cmd
}

func newListConversationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			conversations, err := a.client.ListConversations(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			return a.printOutput(cmd.OutOrStdout(), conversations)
		},
	}
}

type messageRow struct {
	Role    conversation.Role `json:"role" yaml:"role"`
	Time    string            `json:"time,omitempty" yaml:"time,omitempty"`
	Content string            `json:"content" yaml:"content"`
	Tools   []string          `json:"tools,omitempty" yaml:"tools,omitempty"`
}

func newShowConversationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show CONVERSATION_ID",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			structured, _ := cmd.Flags().GetBool("structured")

			a, err := newApp()
			if err != nil {
				return err
			}
			s := session.New(a.userID, a.client)
			if err := s.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			messages := s.Snapshot().Messages

			if structured {
				rows := make([]messageRow, 0, len(messages))
				for _, m := range messages {
					rows = append(rows, messageRow{
						Role:    m.Role,
						Time:    formatTime(m.Time),
						Content: m.Content,
						Tools:   m.ToolNames(),
					})
				}
				return a.printOutput(cmd.OutOrStdout(), rows)
			}

			printTranscript(cmd.OutOrStdout(), messages)
			return nil
		},
	}
	cmd.Flags().Bool("structured", false, "Print messages in the configured output format")
	return cmd
}

func printTranscript(w io.Writer, messages []conversation.Message) {
	for idx, m := range messages {
		if idx > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "[%s] %s\n", formatTime(m.Time), m.Role)
		_, _ = fmt.Fprintln(w, m.Content)
		if names := m.ToolNames(); len(names) > 0 {
			_, _ = fmt.Fprintf(w, "(tools used: %s)\n", strings.Join(names, ", "))
		}
	}
}
