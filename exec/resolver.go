package exec

import (
	"fmt"

	"github.com/wispvm/wisp/wasm"
)

// A NamedFunction is a host function candidate identified by module and
// field name, offered to ResolveImports.
type NamedFunction struct {
	Module string
	Name   string
	Sig    wasm.FunctionSig
	Fn     HostFunc
	Env    any
}

// An UnresolvedImportError is returned when no candidate matches a declared
// function import.
type UnresolvedImportError struct {
	ModuleName string
	FieldName  string
}

func (e *UnresolvedImportError) Error() string {
	return fmt.Sprintf("wasm: unresolved import %s.%s", e.ModuleName, e.FieldName)
}

// An AmbiguousImportError is returned when candidates share the declared
// import's name but none carries its signature.
type AmbiguousImportError struct {
	ModuleName string
	FieldName  string
}

func (e *AmbiguousImportError) Error() string {
	return fmt.Sprintf("wasm: imported function %s.%s has invalid type", e.ModuleName, e.FieldName)
}

// ResolveImports matches the given candidates against the module's declared
// function imports by (module, name, signature) and produces the positional
// function vector expected by Instantiate. Candidates may appear in any
// order; extras are ignored.
func ResolveImports(def *ModuleDefinition, functions []NamedFunction) ([]Function, error) {
	declared := def.FunctionImports()
	resolved := make([]Function, 0, len(declared))
	for i, entry := range declared {
		sig := def.importedFuncSigs[i]

		var match *NamedFunction
		nameFound := false
		for j := range functions {
			c := &functions[j]
			if c.Module != entry.ModuleName || c.Name != entry.FieldName {
				continue
			}
			nameFound = true
			if c.Sig.Equals(sig) {
				match = c
				break
			}
		}
		switch {
		case match != nil:
			resolved = append(resolved, Function{Sig: sig, Fn: match.Fn, Env: match.Env})
		case nameFound:
			return nil, &AmbiguousImportError{ModuleName: entry.ModuleName, FieldName: entry.FieldName}
		default:
			return nil, &UnresolvedImportError{ModuleName: entry.ModuleName, FieldName: entry.FieldName}
		}
	}
	return resolved, nil
}

// ResolveInstantiate resolves the module's function imports from named
// candidates and instantiates it. Consumption semantics match Instantiate.
func ResolveInstantiate(def *ModuleDefinition, functions []NamedFunction) (*Instance, error) {
	resolved, err := ResolveImports(def, functions)
	if err != nil {
		return nil, err
	}
	return Instantiate(def, &Imports{Functions: resolved})
}
