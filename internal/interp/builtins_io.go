package interp

import (
	"bufio"
	"io"
	"os"

	"github.com/luckboy/unlab-gpu/internal/value"
)

// RegisterIOBuiltins installs `open`, `close`, `write`, and `write_line`
// (spec §3.1's supplemented io builtins: file handles alongside stdin's
// `read_line`/stdout's `print`). A handle is a Ref to a *value.File so it
// participates in the ordinary mutable-identity model; `read_line` already
// registered by RegisterBuiltins is extended here to also accept a file
// handle argument, mirroring how print/eprint differ only by their bound
// stream.
func RegisterIOBuiltins(it *Interp) {
	add := func(name string, fn value.BuiltinFn) {
		bf := value.NewBuiltinFun(name, fn)
		it.Builtins[name] = bf
		it.Env.Root.SetVar(name, value.Obj{O: bf})
	}

	add("open", builtinOpen)
	add("close", builtinClose)
	add("write", builtinWrite)
	add("write_line", builtinWriteLine)
	add("read_line", builtinReadLineAny)
}

// builtinOpen opens a path in one of three modes ("r", "w", "a"), returning
// a Ref to a *value.File, or an Error object on failure (never a Go panic,
// consistent with every other io builtin).
func builtinOpen(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, errType("open takes exactly two arguments (path, mode)")
	}
	path, ok := stringArg(args[0])
	if !ok {
		return nil, errType("open requires a string path")
	}
	mode, ok := stringArg(args[1])
	if !ok {
		return nil, errType("open requires a string mode")
	}

	var flag int
	switch mode {
	case "r":
		flag = os.O_RDONLY
	case "w":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a":
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return value.Obj{O: value.NewError("io", "unknown open mode: "+mode)}, nil
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return value.Obj{O: value.NewError("io", err.Error())}, nil
	}

	var r *bufio.Reader
	var w io.Writer
	if mode == "r" {
		r = bufio.NewReader(f)
	} else {
		w = f
	}
	return value.Ref{M: value.NewFile(path, r, w, f)}, nil
}

// builtinClose closes a previously opened file handle. Closing an
// already-closed handle is a no-op, not an error (spec §3.1 prose doesn't
// name double-close as an error case, and the original io model treats
// close as idempotent).
func builtinClose(args []value.Value) (value.Value, error) {
	f, err := fileArg(args, "close")
	if err != nil {
		return nil, err
	}
	if f.Closed {
		return value.None{}, nil
	}
	f.Closed = true
	f.Reader = nil
	f.Writer = nil
	if f.Closer != nil {
		if err := f.Closer.Close(); err != nil {
			return value.Obj{O: value.NewError("io", err.Error())}, nil
		}
	}
	return value.None{}, nil
}

// builtinWrite writes a string to an open file handle with no trailing
// newline.
func builtinWrite(args []value.Value) (value.Value, error) {
	return writeToFile(args, "write", false)
}

// builtinWriteLine writes a string to an open file handle followed by "\n".
func builtinWriteLine(args []value.Value) (value.Value, error) {
	return writeToFile(args, "write_line", true)
}

func writeToFile(args []value.Value, name string, newline bool) (value.Value, error) {
	if len(args) != 2 {
		return nil, errType(name + " takes exactly two arguments (file, text)")
	}
	f, err := fileArg(args[:1], name)
	if err != nil {
		return nil, err
	}
	text, ok := stringArg(args[1])
	if !ok {
		return nil, errType(name + " requires a string argument")
	}
	if f.Writer == nil {
		return value.Obj{O: value.NewError("io", "file is closed or not opened for writing")}, nil
	}
	if newline {
		text += "\n"
	}
	if _, err := f.Writer.Write([]byte(text)); err != nil {
		return value.Obj{O: value.NewError("io", err.Error())}, nil
	}
	return value.None{}, nil
}

// builtinReadLineAny reads one line either from stdin (no arguments, the
// original builtinReadLine's contract) or from an open file handle (one
// argument).
func builtinReadLineAny(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return builtinReadLine(stdinReader)(nil)
	}
	f, err := fileArg(args, "read_line")
	if err != nil {
		return nil, err
	}
	if f.Reader == nil {
		return value.Obj{O: value.NewError("io", "file is closed or not opened for reading")}, nil
	}
	line, rerr := f.Reader.ReadString('\n')
	if rerr != nil && line == "" {
		return value.Obj{O: value.NewError("io", rerr.Error())}, nil
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return value.Obj{O: value.NewString(line)}, nil
}

var stdinReader = bufio.NewReader(os.Stdin)

func stringArg(v value.Value) (string, bool) {
	o, ok := v.(value.Obj)
	if !ok {
		return "", false
	}
	s, ok := o.O.(*value.String)
	if !ok {
		return "", false
	}
	return s.S, true
}

func fileArg(args []value.Value, name string) (*value.File, error) {
	if len(args) != 1 {
		return nil, errType(name + " takes exactly one file argument")
	}
	ref, ok := args[0].(value.Ref)
	if !ok {
		return nil, errType(name + " requires a file handle")
	}
	f, ok := ref.M.(*value.File)
	if !ok {
		return nil, errType(name + " requires a file handle")
	}
	return f, nil
}
