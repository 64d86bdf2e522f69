package cmds

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	WithCaller bool
	Level      string
	// LogFormat is "text" or "json". Empty picks text on a terminal.
	LogFormat string
	LogFile   string
}

func InitLogger(config *LogConfig) error {
	logger := zerolog.New(consoleWriter(config)).With().Timestamp()
	if config.WithCaller {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()

	level := zerolog.InfoLevel
	if config.Level != "" {
		parsed, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func consoleWriter(config *LogConfig) io.Writer {
	format := config.LogFormat
	if format == "" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	var logWriter io.Writer
	if format == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(logWriter, fileWriter(config.LogFile))
	}
	return logWriter
}

func fileWriter(path string) io.Writer {
	return zerolog.ConsoleWriter{
		NoColor: true,
		Out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, //days
			Compress:   false,
		},
	}
}

// redirectLogsForTUI keeps log output off the terminal while a full screen
// program runs. Logs still reach logFile when one is configured. The returned
// func restores the previous logger.
func redirectLogsForTUI(logFile string) func() {
	previous := log.Logger
	var w io.Writer = io.Discard
	if logFile != "" {
		w = fileWriter(logFile)
	}
	log.Logger = log.Output(w)
	return func() {
		log.Logger = previous
	}
}
