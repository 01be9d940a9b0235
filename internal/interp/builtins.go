package interp

import (
	"bufio"
	"fmt"
	"os"

	"github.com/luckboy/unlab-gpu/internal/value"
)

// RegisterBuiltins installs the builtin function table both into it.Builtins
// (for codec name-based lookup on decode, spec §4.6) and as root-module
// variables (so scripts call them unqualified or via root::name, spec
// §4.5's "BuiltinFun(name, f) dispatches to f(interp, env, values)").
func RegisterBuiltins(it *Interp) {
	add := func(name string, fn value.BuiltinFn) {
		bf := value.NewBuiltinFun(name, fn)
		it.Builtins[name] = bf
		it.Env.Root.SetVar(name, value.Obj{O: bf})
	}

	add("print", builtinPrint(os.Stdout))
	add("eprint", builtinPrint(os.Stderr))
	add("read_line", builtinReadLine(bufio.NewReader(os.Stdin)))
	add("typeof", builtinTypeof)
	add("len", builtinLen)
	add("error", builtinError)
	add("getopts", builtinGetopts)
}

func builtinPrint(w *os.File) value.BuiltinFn {
	return func(args []value.Value) (value.Value, error) {
		parts := make([]interface{}, 0, len(args))
		for _, a := range args {
			parts = append(parts, stringify(a))
		}
		fmt.Fprintln(w, parts...)
		return value.None{}, nil
	}
}

func builtinReadLine(r *bufio.Reader) value.BuiltinFn {
	return func(args []value.Value) (value.Value, error) {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return value.Obj{O: value.NewError("io", err.Error())}, nil
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		return value.Obj{O: value.NewString(line)}, nil
	}
}

func stringify(v value.Value) string {
	switch x := v.(type) {
	case value.None:
		return "none"
	case value.Bool:
		if x {
			return "true"
		}
		return "false"
	case value.Int:
		return fmt.Sprintf("%d", int64(x))
	case value.Float:
		return fmt.Sprintf("%g", float32(x))
	case value.Obj:
		if s, ok := x.O.(*value.String); ok {
			return s.S
		}
		if e, ok := x.O.(*value.ErrorObj); ok {
			return fmt.Sprintf("Error(%s, %s)", e.EKind, e.Msg)
		}
	}
	return value.TypeName(v)
}

func builtinTypeof(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, errType("typeof takes exactly one argument")
	}
	return value.Obj{O: value.NewString(value.TypeName(args[0]))}, nil
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, errType("len takes exactly one argument")
	}
	switch v := args[0].(type) {
	case value.Ref:
		if arr, ok := v.M.(*value.Array); ok {
			return value.Int(len(arr.Elems)), nil
		}
	case value.Obj:
		if s, ok := v.O.(*value.String); ok {
			return value.Int(len(s.S)), nil
		}
	}
	return nil, errType("len requires an array or string")
}

func builtinError(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, errType("error takes exactly two arguments (kind, msg)")
	}
	kind, ok1 := args[0].(value.Obj)
	msg, ok2 := args[1].(value.Obj)
	ks, kOk := kind.O.(*value.String)
	ms, mOk := msg.O.(*value.String)
	if !ok1 || !ok2 || !kOk || !mOk {
		return nil, errType("error requires two string arguments")
	}
	return value.Obj{O: value.NewError(ks.S, ms.S)}, nil
}
