package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-go-golems/docchat/pkg/api"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"gopkg.in/yaml.v3"
)

// Version is set by main.
var Version = "dev"

type app struct {
	settings *config.Settings
	client   *api.Client
	userID   string
}

func newApp() (*app, error) {
	settings, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	userID, err := settings.ResolveUserID()
	if err != nil {
		return nil, errors.Wrap(err, "could not determine user id")
	}

	log.Debug().
		Str("api_url", settings.APIURL).
		Str("user_id", userID).
		Msg("Settings loaded")

	return &app{
		settings: settings,
		client:   settings.NewClient(api.WithUserAgent("docchat/" + Version)),
		userID:   userID,
	}, nil
}

// interactive wires session and upload controller to an event router, for
// the chat UI to subscribe to.
type interactive struct {
	router  *events.EventRouter
	session *session.Session
	uploads *upload.Controller
}

func (a *app) newInteractive() (*interactive, error) {
	router, err := events.NewEventRouter(
		events.WithVerbose(zerolog.GlobalLevel() <= zerolog.TraceLevel),
	)
	if err != nil {
		return nil, err
	}
	sink := router.Sink(events.DefaultTopic)

	return &interactive{
		router:  router,
		session: session.New(a.userID, a.client, session.WithSink(sink)),
		uploads: upload.NewController(a.client, upload.WithSink(sink)),
	}, nil
}

func (a *app) printOutput(w io.Writer, v interface{}) error {
	switch a.settings.Output {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(v)
	}
}

func isOutputTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func askForChatContinuation() (bool, error) {
	tty_, err := ui.OpenTTY()
	if err != nil {
		return false, err
	}
	defer func() {
		err := tty_.Close()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to close tty")
		}
	}()

	ui_ := &input.UI{
		Writer: tty_,
		Reader: tty_,
	}

	query := "\nDo you want to continue in chat? [y/n]"
	answer, err := ui_.Ask(query, &input.Options{
		Default:  "y",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}

	return answer == "y" || answer == "Y", nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
