package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runh-project/runh/cmd/runh/create"
	"github.com/runh-project/runh/cmd/runh/delete"
	"github.com/runh-project/runh/cmd/runh/internal/initcmd"
	"github.com/runh-project/runh/cmd/runh/kill"
	"github.com/runh-project/runh/cmd/runh/list"
	"github.com/runh-project/runh/cmd/runh/ps"
	"github.com/runh-project/runh/cmd/runh/pull"
	"github.com/runh-project/runh/cmd/runh/run"
	"github.com/runh-project/runh/cmd/runh/spec"
	"github.com/runh-project/runh/cmd/runh/start"
	"github.com/runh-project/runh/cmd/runh/state"
	"github.com/runh-project/runh/log"
)

const defaultRoot = "/tmp/runh"

// Run builds and executes the runh command tree, returning the process
// exit code.
func Run(args []string) int {
	root := &cobra.Command{
		Use:           "runh",
		Short:         "Run OCI-compatible containers and HermitCore unikernels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("root", defaultRoot, "Root directory for storage of container state")
	root.PersistentFlags().String("log", "", "Path to write internal debug logs; stderr if empty")
	root.PersistentFlags().StringP("log-level", "l", "info", "Log level: trace, debug, info, warn, error, off")
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return configureLogging(cmd)
	}

	root.AddCommand(
		spec.New(),
		create.New(),
		start.New(),
		delete.New(),
		list.New(),
		run.New(),
		state.New(),
		kill.New(),
		ps.New(),
		pull.New(),
		initcmd.New(),
	)

	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		logrus.StandardLogger().Error(err)
		return 1
	}
	return 0
}

func configureLogging(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logPath, _ := cmd.Flags().GetString("log")
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	logger := logrus.StandardLogger()

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logger.SetOutput(f)
	}

	if format == "json" {
		logger.SetFormatter(new(logrus.JSONFormatter))
	}

	if levelName == "off" {
		logger.SetOutput(io.Discard)
	} else if levelName != "" {
		level, ok := log.Levels()[levelName]
		if !ok {
			return fmt.Errorf("unknown log level %q", levelName)
		}
		logger.SetLevel(level)
	}

	cmd.SetContext(log.WithLogger(ctx, logger))
	return nil
}
