// Package uerr implements the single error taxonomy shared by the scripting
// runtime and the package manager (spec §7). Every non-sentinel error
// surfaced across a package boundary is one of the kinds declared here; the
// Stop sentinel used for control-flow unwinding lives in its own type so it
// is never mistaken for a reportable error.
package uerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// EofFlag distinguishes EOF encountered mid-repetition (more input is
// likely wanted) from a definitive EOF.
type EofFlag int

const (
	NoRepetition EofFlag = iota
	Repetition
)

// Kind identifies which error variant an Error value carries.
type Kind int

const (
	KindParserIo Kind = iota
	KindParserEof
	KindParser
	KindInterp
	KindMatrix
	KindRwLockRead
	KindRwLockWrite
	KindAlreadyAddedModNode
	KindRecursivelyUsedModNode
	KindNoFunMod
	KindNoDocMod
	KindIntr
	KindCtrlc
	KindIo
	KindTomlDe
	KindTomlSer
	KindSerdeJSON
	KindCurl
	KindJammdb
	KindZip
	KindPkgName
	KindPkgDepCycle
	KindPkgPathConflicts
	KindInvalidPkgName
	KindInvalidVersion
	KindPkg
	KindNoOpenClBackend
	KindNoCudaBackend
)

// Pos is re-declared here (rather than imported from token) to keep this
// package free of a dependency on the lexer/parser; token.Pos converts to
// it trivially via its Uerr method.
type Pos struct {
	Path   string
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%s:%d.%d", p.Path, p.Line, p.Column) }

// Error is the runtime's single error type, tagged by Kind.
type Error struct {
	Kind Kind

	Path string
	Flag EofFlag
	Pos  Pos
	Msg  string

	// PkgPathConflicts fields.
	PkgA      string
	PkgB      string // empty if conflict is against an existing install, not another staged pkg
	Paths     []string
	ConflictKind string

	Inner error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindParserIo:
		return fmt.Sprintf("%s: %v", e.Path, e.Inner)
	case KindParserEof:
		if e.Flag == Repetition {
			return fmt.Sprintf("%s: unexpected end of file (more input expected)", e.Path)
		}
		return fmt.Sprintf("%s: unexpected end of file", e.Path)
	case KindParser:
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	case KindInterp:
		if e.Pos.Path != "" {
			return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
		}
		return e.Msg
	case KindMatrix:
		return fmt.Sprintf("matrix error: %v", e.Inner)
	case KindRwLockRead:
		return "module tree read lock poisoned"
	case KindRwLockWrite:
		return "module tree write lock poisoned"
	case KindAlreadyAddedModNode:
		return "module node already has a parent"
	case KindRecursivelyUsedModNode:
		return "used-module is an ancestor of the using module"
	case KindNoFunMod:
		return "no such function module"
	case KindNoDocMod:
		return "no such doc module"
	case KindIntr:
		return "interrupted"
	case KindCtrlc:
		return fmt.Sprintf("could not install interrupt handler: %v", e.Inner)
	case KindPkgName:
		return fmt.Sprintf("%s: %s", e.PkgA, e.Msg)
	case KindPkgDepCycle:
		return fmt.Sprintf("dependency cycle: %s", e.Msg)
	case KindPkgPathConflicts:
		if e.PkgB != "" {
			return fmt.Sprintf("package %q conflicts with package %q on %d %s path(s)", e.PkgA, e.PkgB, len(e.Paths), e.ConflictKind)
		}
		return fmt.Sprintf("package %q conflicts with an existing installation on %d %s path(s)", e.PkgA, len(e.Paths), e.ConflictKind)
	case KindInvalidPkgName:
		return fmt.Sprintf("invalid package name: %s", e.Msg)
	case KindInvalidVersion:
		return fmt.Sprintf("invalid version: %s", e.Msg)
	case KindPkg:
		return e.Msg
	case KindNoOpenClBackend:
		return "no OpenCL backend available"
	case KindNoCudaBackend:
		return "no CUDA backend available"
	default:
		if e.Inner != nil {
			return e.Inner.Error()
		}
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Inner }

func ParserIo(path string, inner error) *Error {
	return &Error{Kind: KindParserIo, Path: path, Inner: errors.Wrap(inner, "parser io")}
}

func ParserEof(path string, flag EofFlag) *Error {
	return &Error{Kind: KindParserEof, Path: path, Flag: flag}
}

func Parser(pos Pos, msg string) *Error {
	return &Error{Kind: KindParser, Pos: pos, Msg: msg}
}

func Interp(msg string) *Error { return &Error{Kind: KindInterp, Msg: msg} }

func InterpAt(pos Pos, msg string) *Error { return &Error{Kind: KindInterp, Pos: pos, Msg: msg} }

func PkgName(name, msg string) *Error { return &Error{Kind: KindPkgName, PkgA: name, Msg: msg} }

func PkgDepCycle(msg string) *Error { return &Error{Kind: KindPkgDepCycle, Msg: msg} }

func PkgPathConflicts(a, b string, paths []string, kind string) *Error {
	return &Error{Kind: KindPkgPathConflicts, PkgA: a, PkgB: b, Paths: paths, ConflictKind: kind}
}

func Pkg(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPkg, Msg: fmt.Sprintf(format, args...)}
}

func InvalidPkgName(msg string) *Error { return &Error{Kind: KindInvalidPkgName, Msg: msg} }

func InvalidVersion(msg string) *Error { return &Error{Kind: KindInvalidVersion, Msg: msg} }

var (
	ErrAlreadyAddedModNode     = &Error{Kind: KindAlreadyAddedModNode}
	ErrRecursivelyUsedModNode  = &Error{Kind: KindRecursivelyUsedModNode}
	ErrNoFunMod                = &Error{Kind: KindNoFunMod}
	ErrNoDocMod                = &Error{Kind: KindNoDocMod}
	ErrIntr                    = &Error{Kind: KindIntr}
	ErrRwLockRead              = &Error{Kind: KindRwLockRead}
	ErrRwLockWrite             = &Error{Kind: KindRwLockWrite}
)

// StopKind enumerates the cooperative control-flow sentinels (spec §4.5,
// §7). Stop is carried inside the same error channel as Error but is never
// formatted or reported as a user-facing failure by the main loop; each
// catcher (loop, function call, the `?` operator, the REPL) must type-switch
// for it explicitly before propagating anything further.
type StopKind int

const (
	StopBreak StopKind = iota
	StopContinue
	StopReturn
	StopErrorPropagation
	StopQuit
	StopExit
)

// Stop is the sentinel propagated through Go's normal error return path to
// implement break/continue/return/?/quit/exit without panics or
// continuations.
type Stop struct {
	Kind StopKind
	Code int // meaningful only for StopExit
}

func (s *Stop) Error() string {
	switch s.Kind {
	case StopBreak:
		return "break"
	case StopContinue:
		return "continue"
	case StopReturn:
		return "return"
	case StopErrorPropagation:
		return "error propagation"
	case StopQuit:
		return "quit"
	case StopExit:
		return fmt.Sprintf("exit(%d)", s.Code)
	default:
		return "stop"
	}
}

func NewStop(kind StopKind) *Stop { return &Stop{Kind: kind} }

func NewStopExit(code int) *Stop { return &Stop{Kind: StopExit, Code: code} }

// AsStop reports whether err is a *Stop, unwrapping wrapped errors.
func AsStop(err error) (*Stop, bool) {
	var s *Stop
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// AsError reports whether err is a *Error, unwrapping wrapped errors.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
