// Package run implements `wisp run`: instantiate a module and invoke one of
// its exported functions.
package run

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wispvm/wisp/exec"
	"github.com/wispvm/wisp/load"
	"github.com/wispvm/wisp/wasm"
)

func Command() *cobra.Command {
	var invoke string
	var verbose bool

	command := &cobra.Command{
		Use:   "run [path to module] [args...]",
		Short: "Run a function exported by a WebAssembly module",
		Long: "Instantiate the module at the given path and invoke an exported function.\n" +
			"Arguments are parsed according to the function's parameter types.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("expected a path to a module")
			}

			logger := zap.NewNop()
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			defer logger.Sync()

			def, err := load.ParseFile(args[0])
			if err != nil {
				return err
			}
			logger.Info("parsed module",
				zap.String("path", args[0]),
				zap.Int("functions", def.NumFunctions()),
				zap.Int("imports", def.NumImportedFunctions()))

			// Imported functions are bound to a logging stub so simple
			// modules with unbound imports remain runnable.
			var imports []exec.Function
			for _, entry := range def.FunctionImports() {
				funcidx := len(imports)
				sig, _ := def.FunctionType(uint32(funcidx))
				name := fmt.Sprintf("%s.%s", entry.ModuleName, entry.FieldName)
				imports = append(imports, exec.Function{
					Sig: sig,
					Fn: func(env any, _ *exec.Instance, args []exec.Value, depth int) exec.ExecutionResult {
						logger.Info("host import called",
							zap.String("import", env.(string)),
							zap.Int("args", len(args)),
							zap.Int("depth", depth))
						if len(sig.ReturnTypes) != 0 {
							return exec.ValueResult(0)
						}
						return exec.Void
					},
					Env: name,
				})
			}

			inst, err := exec.Instantiate(def, &exec.Imports{Functions: imports})
			if err != nil {
				return err
			}
			defer inst.Close()

			funcidx, ok := def.ExportedFunction(invoke)
			if !ok {
				return fmt.Errorf("no exported function named %q", invoke)
			}
			sig, _ := def.FunctionType(funcidx)

			values, err := parseArgs(sig, args[1:])
			if err != nil {
				return err
			}

			logger.Info("executing", zap.String("function", invoke), zap.Uint32("funcidx", funcidx))
			result := exec.Execute(inst, funcidx, values, 0)
			switch {
			case result.Trapped:
				return errors.New("trap")
			case result.HasValue:
				fmt.Println(formatValue(sig.ReturnTypes[0], result.Value))
			}
			return nil
		},
	}

	command.Flags().StringVar(&invoke, "invoke", "main", "the name of the exported function to invoke")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	return command
}

func parseArgs(sig wasm.FunctionSig, args []string) ([]exec.Value, error) {
	if len(args) != len(sig.ParamTypes) {
		return nil, fmt.Errorf("expected %d arguments; got %d", len(sig.ParamTypes), len(args))
	}
	values := make([]exec.Value, len(args))
	for i, arg := range args {
		switch sig.ParamTypes[i] {
		case wasm.ValueTypeI32:
			v, err := strconv.ParseInt(arg, 0, 32)
			if err != nil {
				return nil, err
			}
			values[i] = exec.I32Value(int32(v))
		case wasm.ValueTypeI64:
			v, err := strconv.ParseInt(arg, 0, 64)
			if err != nil {
				return nil, err
			}
			values[i] = exec.I64Value(v)
		case wasm.ValueTypeF32:
			v, err := strconv.ParseFloat(arg, 32)
			if err != nil {
				return nil, err
			}
			values[i] = exec.F32Value(float32(v))
		case wasm.ValueTypeF64:
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, err
			}
			values[i] = exec.F64Value(v)
		}
	}
	return values, nil
}

func formatValue(t wasm.ValueType, v exec.Value) string {
	switch t {
	case wasm.ValueTypeI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case wasm.ValueTypeI64:
		return strconv.FormatInt(v.I64(), 10)
	case wasm.ValueTypeF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	default:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	}
}
