package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnehpets/httprpc/config"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	ConfigFile string
	EnvFile    string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(config.Options{File: o.ConfigFile, EnvFile: o.EnvFile})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "httprpc",
		Short:         "Expose Go methods as HTTP calls with streamed results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file read before the environment")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDecodeCommand())
	cmd.AddCommand(newIssueCommand(opts))
	return cmd
}

func setupLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
