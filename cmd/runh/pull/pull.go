// Package pull implements the "runh pull" command as a stub: image
// pulling and bundle extraction are out of scope for this runtime core.
package pull

import (
	"errors"

	"github.com/spf13/cobra"
)

var errNotImplemented = errors.New("pull: not implemented by the core; see non-goals")

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "pull <image>",
		Short:  "Pull a container image (not implemented)",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNotImplemented
		},
	}

	cmd.Flags().String("username", "", "registry username")
	cmd.Flags().String("password", "", "registry password")
	cmd.Flags().String("bundle", "", "destination bundle directory")
	return cmd
}
