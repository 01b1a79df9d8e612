// Package dump implements `wisp dump`: per-function statistics for decoded
// WebAssembly modules.
package dump

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/validate"
)

func Command() *cobra.Command {
	command := &cobra.Command{
		Use:   "dump [path to module]",
		Short: "Dump per-function statistics for a WebAssembly module",
		Long: "Decode the module at the given path and write per-function statistics\n" +
			"in CSV form to standard output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			m, err := wasm.DecodeModule(f)
			if err != nil {
				return err
			}
			if err := validate.ValidateModule(m, false); err != nil {
				return err
			}

			return dumpStats(os.Stdout, m)
		},
	}
	return command
}
