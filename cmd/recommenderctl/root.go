package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
	"github.com/spf13/cobra"
)

const appName = "recommenderctl"

// Actual version can be specified in build command.
var version = "unknown"

var (
	cfgFile string
	debug   bool
	jsonLog bool

	cfg *config.Config

	// newCore is replaced in tests.
	newCore = func(ctx context.Context, cfg *config.Config) (*app.Core, error) {
		return app.NewCore(ctx, cfg, nil)
	}
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         appName + " manages the internship recommender's vectorizer, index and data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		level, format := cfg.Logging.Level, "text"
		if debug {
			level = "debug"
		}
		if jsonLog {
			format = "json"
		}
		logger.Setup(level, format)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging")
	rootCmd.AddCommand(versionCmd)
}

// withCore opens the core for one command and closes it afterwards.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	core, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(ctx, core)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
