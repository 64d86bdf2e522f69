package cmds

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant about your documents",
		Long: "Opens the terminal chat. By default the most recent conversation is resumed.\n" +
			"Type /help inside the chat for the available commands.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, _ := cmd.Flags().GetString("conversation")
			newConversation, _ := cmd.Flags().GetBool("new")

			a, err := newApp()
			if err != nil {
				return err
			}
			i, err := a.newInteractive()
			if err != nil {
				return err
			}

			options := []ui.ModelOption{}
			switch {
			case conversationID != "":
				options = append(options, ui.WithConversation(conversationID))
			case !newConversation:
				options = append(options, ui.WithResume(true))
			}

			return runChat(cmd.Context(), i, options...)
		},
	}

	cmd.Flags().String("conversation", "", "Open this conversation instead of the most recent one")
	cmd.Flags().Bool("new", false, "Start with a new conversation")
	cmd.MarkFlagsMutuallyExclusive("conversation", "new")

	return cmd
}

// runChat runs the TUI until the user quits, with the event router feeding
// state updates into the program.
func runChat(ctx context.Context, i *interactive, options ...ui.ModelOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		_ = i.router.Close()
	}()

	programOptions := []tea.ProgramOption{
		tea.WithMouseCellMotion(), // turn on mouse support so we can track the mouse wheel
	}
	markdownStyle := "notty"
	if !isOutputTerminal() {
		programOptions = append(programOptions, tea.WithOutput(os.Stderr))
	} else {
		programOptions = append(programOptions, tea.WithAltScreen())
		markdownStyle = "light"
		if lipgloss.HasDarkBackground() {
			markdownStyle = "dark"
		}
	}

	restoreLogs := redirectLogsForTUI(viper.GetString("log-file"))
	defer restoreLogs()

	options = append(options, ui.WithMarkdownStyle(markdownStyle))
	p := tea.NewProgram(
		ui.NewModel(ctx, i.session, i.uploads, options...),
		programOptions...,
	)

	i.router.AddHandler("ui", events.DefaultTopic, ui.ForwardEvents(p))
	i.router.AddHandler("log", events.DefaultTopic, i.router.LogEvents)

	eg := errgroup.Group{}
	eg.Go(func() error {
		return i.router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()

		select {
		case <-i.router.Running():
		case <-ctx.Done():
			return nil
		}

		_, err := p.Run()
		return err
	})

	return eg.Wait()
}
