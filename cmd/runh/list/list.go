// Package list implements the "runh list" command.
package list

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
)

func New() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers",
		Args:  cobra.NoArgs,
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

			ids, err := runh.List(root)
			if err != nil {
				return fmt.Errorf("listing containers: %w", err)
			}

			type entry struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Pid    int    `json:"pid"`
			}
			var entries []entry
			for _, id := range ids {
				status, pid, err := runh.State(root, id)
				if err != nil {
					return fmt.Errorf("getting state for %s: %w", id, err)
				}
				entries = append(entries, entry{ID: id, Status: string(status), Pid: pid})
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPID\tSTATUS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", e.ID, e.Pid, e.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "format-json", false, "output as JSON instead of a table")
	return cmd
}
