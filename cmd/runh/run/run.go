// Package run implements the "runh run" command: create immediately
// followed by start.
package run

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
)

func New() *cobra.Command {
	var bundle, pidFile, consoleSocket string

	cmd := &cobra.Command{
		Use:   "run <container-id>",
		Short: "Create and immediately start a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			ctx := cmd.Context()
			defer func() {
				if retErr != nil {
					log.G(ctx).Error(retErr)
				}
			}()

			root, _ := cmd.Flags().GetString("root")
			logLevel, _ := cmd.Flags().GetString("log-level")
			if root == "" {
				return fmt.Errorf("state directory (--root flag) is not set")
			}
			if bundle == "" {
				return fmt.Errorf("--bundle is required")
			}

			_, err := runh.Run(runh.CreateOptions{
				Root:          root,
				ID:            args[0],
				Bundle:        bundle,
				PIDFile:       pidFile,
				ConsoleSocket: consoleSocket,
				LogLevel:      logLevel,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundle, "bundle", "", "Path to the bundle directory")
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to write the container process id")
	cmd.Flags().StringVar(&consoleSocket, "console-socket", "", "Path to an AF_UNIX socket to receive the console fd")
	return cmd
}
