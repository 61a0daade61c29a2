// Package ps implements the "runh ps" command, displaying the host
// process that runs a container's workload.
package ps

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runh-project/runh/log"
	"github.com/runh-project/runh/runh"
	"github.com/runh-project/runh/state"
)

const formatJSON = "json"

func New() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ps <container-id> [ps options]",
		Short: "Display the host process that runs a container",
		Args:  cobra.MinimumNArgs(1),
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

			var pids []int
			if status != state.StatusStopped {
				pids = append(pids, pid)
			}

			if format == formatJSON {
				return json.NewEncoder(os.Stdout).Encode(pids)
			}
			return printTable(pids, args[1:])
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "format of the output (table or json)")
	return cmd
}

func printTable(pids []int, psArgs []string) error {
	if len(psArgs) == 0 {
		psArgs = []string{"-ef"}
	}

	cmd := exec.Command("ps", psArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}

	lines := strings.Split(string(output), "\n")
	pidIndex, err := getPidIndex(lines[0])
	if err != nil {
		return err
	}

	fmt.Println(lines[0])
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		fields := strings.Fields(line)
		p, err := strconv.Atoi(fields[pidIndex])
		if err != nil {
			return fmt.Errorf("unable to parse pid: %w", err)
		}
		for _, pid := range pids {
			if pid == p {
				fmt.Println(line)
				break
			}
		}
	}
	return nil
}

func getPidIndex(title string) (int, error) {
	for i, name := range strings.Fields(title) {
		if name == "PID" {
			return i, nil
		}
	}
	return -1, errors.New("couldn't find PID field in ps output")
}
