package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-go-golems/docchat/cmd/docchat/cmds"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "docchat",
	Short:        "docchat talks to your document assistant from the terminal",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
}

func initLogger() {
	err := cmds.InitLogger(&cmds.LogConfig{
		Level:      viper.GetString("log-level"),
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	// Load the variables from the environment
	viper.SetEnvPrefix("docchat")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("docchat")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.docchat")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/docchat")
		}
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		// Config file was found but another error was produced
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewSendCommand(),
		cmds.NewConversationsCommand(),
		cmds.NewDocumentsCommand(),
		cmds.NewHealthCommand(),
		cmds.NewWhoamiCommand(),
	)

	return nil
}

func init() {
	cmds.Version = version
	rootCmd.Version = version

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default ./docchat.yaml, ~/.docchat/docchat.yaml)")
	flags.String(config.KeyAPIURL, "", "Base URL of the chat backend")
	flags.String(config.KeyUserID, "", "Use this user id instead of the generated one")
	flags.String(config.KeyIdentityFile, "", "File the generated user id is kept in")
	flags.StringP(config.KeyOutput, "o", config.OutputYAML, "Output format for listings (yaml, json)")
	flags.Bool(config.KeyAllowHTTP, true, "Allow plain http backend URLs")
	flags.Bool(config.KeyAllowLocal, true, "Allow backend URLs on loopback and private networks")

	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, text), text on a terminal by default")
	flags.String("log-file", "", "Log file (default: stderr)")
	flags.Bool("with-caller", false, "Log caller")
}

// configPathFromArgs finds --config before cobra parsed the flags, so that
// the config file can provide the defaults for every other flag.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func main() {
	err := initCommands(rootCmd, configPathFromArgs(os.Args[1:]))
	cobra.CheckErr(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
