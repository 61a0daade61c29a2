// Package delete implements the "runh delete" command.
package delete

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
)

func New() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <container-id>",
		Short: "Delete any resources held by a container",
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

			return runh.Delete(root, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "forcibly delete the container if it is still running")
	return cmd
}
