// Package start implements the "runh start" command.
package start

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <container-id>",
		Short: "Start a created container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			ctx := cmd.Context()
			defer func() {
				if retErr != nil {
					log.G(ctx).Error(retErr)
				}
			}()

			root, _ := cmd.Flags().GetString("root")
			if root == "" {
				return fmt.Errorf("state directory (--root flag) is not set")
			}

			c, err := runh.Load(root, args[0])
			if err != nil {
				return fmt.Errorf("loading container from saved state: %w", err)
			}
			return runh.Start(c)
		},
	}
	return cmd
}
