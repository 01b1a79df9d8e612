package exec

import "github.com/wispvm/wisp/wasm"

// A HostFunc implements an imported function. It receives the opaque env
// cookie bound with the function, a borrow of the calling instance (it may
// call back in via Execute), the argument values, and the current call
// depth. It returns a trap, void, or a single value matching the declared
// signature.
type HostFunc func(env any, i *Instance, args []Value, depth int) ExecutionResult

// A Function is a callable function reference paired with its signature:
// either a host function or a guest export wrapped by FindExportedFunction.
type Function struct {
	Sig wasm.FunctionSig
	Fn  HostFunc
	Env any
}

// Call invokes the function.
func (f *Function) Call(i *Instance, args []Value, depth int) ExecutionResult {
	return f.Fn(f.Env, i, args, depth)
}
