package exec

import (
	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
	"github.com/wispvm/wisp/wasm/validate"
)

// funcBody is a module-defined function: its signature, declared local count
// and decoded, validated body with label metadata.
type funcBody struct {
	sig       wasm.FunctionSig
	numLocals int // declared locals, parameters excluded
	body      code.Body
}

// A ModuleDefinition is a parsed, validated module ready for instantiation.
// Code bodies are decoded exactly once, here; execution reads the label
// metadata computed during that decode.
type ModuleDefinition struct {
	module *wasm.Module

	types            []wasm.FunctionSig
	importedFuncSigs []wasm.FunctionSig
	funcs            []funcBody

	instantiated bool
}

// NewModuleDefinition validates the given module and decodes its code
// bodies. The module must not be mutated afterwards.
func NewModuleDefinition(m *wasm.Module) (*ModuleDefinition, error) {
	if err := validate.ValidateModule(m, false); err != nil {
		return nil, err
	}

	def := &ModuleDefinition{module: m}
	if m.Types != nil {
		def.types = m.Types.Entries
	}

	scope := code.NewStaticScope(m)
	for _, typeidx := range scope.ImportedFunctions {
		sig, _ := scope.GetType(typeidx)
		def.importedFuncSigs = append(def.importedFuncSigs, sig)
	}

	if m.Function != nil {
		def.funcs = make([]funcBody, len(m.Function.Types))
		for i, typeidx := range m.Function.Types {
			sig, _ := scope.GetType(typeidx)
			raw := m.Code.Bodies[i]

			scope.SetFunction(sig, raw)
			body, err := code.Decode(raw.Code, scope, sig.ReturnTypes)
			if err != nil {
				return nil, err
			}
			def.funcs[i] = funcBody{
				sig:       sig,
				numLocals: len(scope.Locals) - len(sig.ParamTypes),
				body:      body,
			}
		}
	}
	return def, nil
}

// Module returns the underlying decoded module.
func (d *ModuleDefinition) Module() *wasm.Module {
	return d.module
}

// NumImportedFunctions returns the number of function imports the module
// declares.
func (d *ModuleDefinition) NumImportedFunctions() int {
	return len(d.importedFuncSigs)
}

// NumFunctions returns the size of the function index space, imports
// included.
func (d *ModuleDefinition) NumFunctions() int {
	return len(d.importedFuncSigs) + len(d.funcs)
}

// FunctionType returns the signature of the function with the given index in
// the function index space, imported functions included.
func (d *ModuleDefinition) FunctionType(funcidx uint32) (wasm.FunctionSig, bool) {
	if funcidx < uint32(len(d.importedFuncSigs)) {
		return d.importedFuncSigs[int(funcidx)], true
	}
	funcidx -= uint32(len(d.importedFuncSigs))
	if funcidx >= uint32(len(d.funcs)) {
		return wasm.FunctionSig{}, false
	}
	return d.funcs[int(funcidx)].sig, true
}

// ExportedFunction returns the function index exported under the given name.
func (d *ModuleDefinition) ExportedFunction(name string) (uint32, bool) {
	return d.module.ExportedFunction(name)
}

// FunctionImports describes the module's declared function imports in order.
func (d *ModuleDefinition) FunctionImports() []wasm.ImportEntry {
	if d.module.Import == nil {
		return nil
	}
	var entries []wasm.ImportEntry
	for _, e := range d.module.Import.Entries {
		if _, ok := e.Type.(wasm.FuncImport); ok {
			entries = append(entries, e)
		}
	}
	return entries
}
