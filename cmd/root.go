package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var RootCmd = &cobra.Command{
	Use:   "pb-analyzer",
	Short: "Find columns Power BI reports ship but never show",
	Long: `
  ____  ____       _    _   _    _    _  __   ____________ ____
 |  _ \| __ )     / \  | \ | |  / \  | | \ \ / /__  / ____|  _ \
 | |_) |  _ \    / _ \ |  \| | / _ \ | |  \ V /  / /|  _| | |_) |
 |  __/| |_) |  / ___ \| |\  |/ ___ \| |___| |  / /_| |___|  _ <
 |_|   |____/  /_/   \_\_| \_/_/   \_\_____|_| /____|_____|_| \_\

PB ANALYZER 🔎 - Unused column detection for Power BI reports

Every column of a report's semantic model is downloadable by its viewers,
whether or not a visual shows it. pb-analyzer lists the columns no visual,
filter or bookmark references so they can be removed before the report is
shared with the organization or published to the web.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(os.Stderr, viper.GetString("log.format"), viper.GetBool("log.debug"))
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Define flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pb-analyzer.yaml)")
	RootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	RootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	viper.BindPFlag("log.debug", RootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))

	setDefaults()
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			exePath := filepath.Dir(ex)
			viper.AddConfigPath(exePath)
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("pb-analyzer")
		viper.SetConfigType("yaml")
	}

	// PBA_POWERBI_TOKEN -> powerbi.token
	viper.SetEnvPrefix("PBA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}
