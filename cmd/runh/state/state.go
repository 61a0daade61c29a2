// Package state implements the "runh state" command.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
)

// containerState is a JSON-serializable view of the OCI runtime state.
type containerState struct {
	OCIVersion string `json:"ociVersion"`
	ID         string `json:"id"`
	Status     string `json:"status"`
	Pid        int    `json:"pid"`
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <container-id>",
		Short: "Output the state of a container",
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

			status, pid, err := runh.State(root, args[0])
			if err != nil {
				return fmt.Errorf("getting container state: %w", err)
			}

			cs := containerState{
				OCIVersion: "1.0.2",
				ID:         args[0],
				Status:     string(status),
				Pid:        pid,
			}

			data, err := json.MarshalIndent(cs, "", "  ")
			if err != nil {
				return fmt.Errorf("serializing container state: %w", err)
			}
			_, _ = os.Stdout.Write(data)
			fmt.Println()
			return nil
		},
	}
	return cmd
}
