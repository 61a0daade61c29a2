// Package spec implements the "runh spec" command, which writes a
// minimal, valid config.json to the current directory for a new bundle.
package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

func New() *cobra.Command {
	var bundle string

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Create a new specification file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(bundle)
		},
	}

	cmd.Flags().StringVar(&bundle, "bundle", ".", "Path to the bundle directory")
	return cmd
}

func run(bundle string) error {
	path := filepath.Join(bundle, "config.json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	s := &specs.Spec{
		Version: "1.0.2",
		Process: &specs.Process{
			Terminal: true,
			Args:     []string{"sh"},
			Cwd:      "/",
		},
		Root: &specs.Root{
			Path:     "rootfs",
			Readonly: false,
		},
		Hostname: "runh",
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config.json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
