package interp

import (
	"strings"

	"github.com/luckboy/unlab-gpu/internal/value"
)

// builtinGetopts implements the `getopts(specs, args)` builtin scripts use
// to parse their own argv (distinct from the out-of-core CLI argument
// parser for the unlab-gpu binaries themselves; spec SPEC_FULL §3.1,
// grounded on original_source/src/getopts/tests.rs).
//
// Each spec entry is a 6-string array: [short, field-name (dashes allowed),
// description, arg-name, has-arg ("yes"|"no"|"maybe"), kind
// ("req"|"optional"|"multi")]. Each matched option's occurrences are
// collected into an array under a struct field named after field-name with
// dashes replaced by underscores; an option that never appears is `None`
// unless its kind is "req", in which case its absence yields an
// Error("getopts", ...) value. Remaining, unconsumed arguments are
// collected as the `free` field.
func builtinGetopts(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, errType("getopts takes exactly two arguments (specs, args)")
	}
	specs, err := stringArrayArray(args[0])
	if err != nil {
		return nil, err
	}
	argv, err := stringArray(args[1])
	if err != nil {
		return nil, err
	}

	type spec struct {
		short, field, desc, argName, hasArg, kind string
	}
	var parsed []spec
	bySpec := make(map[string]*spec)
	for _, s := range specs {
		if len(s) != 6 {
			return nil, errType("getopts spec entries must have six fields")
		}
		sp := spec{short: s[0], field: s[1], desc: s[2], argName: s[3], hasArg: s[4], kind: s[5]}
		parsed = append(parsed, sp)
		bySpec[sp.short] = &parsed[len(parsed)-1]
	}

	collected := make(map[string][]string)
	seen := make(map[string]bool)
	var free []string

	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if len(a) == 2 && a[0] == '-' {
			short := a[1:]
			sp, ok := bySpec[short]
			if !ok {
				free = append(free, a)
				continue
			}
			seen[sp.field] = true
			switch sp.hasArg {
			case "yes":
				if i+1 >= len(argv) {
					return value.Obj{O: value.NewError("getopts", "option -"+short+" requires an argument")}, nil
				}
				i++
				collected[sp.field] = append(collected[sp.field], argv[i])
			case "maybe":
				if i+1 < len(argv) && !(len(argv[i+1]) >= 1 && argv[i+1][0] == '-') {
					i++
					collected[sp.field] = append(collected[sp.field], argv[i])
				} else if collected[sp.field] == nil {
					collected[sp.field] = []string{}
				}
			default: // "no"
				if collected[sp.field] == nil {
					collected[sp.field] = []string{}
				}
			}
			continue
		}
		free = append(free, a)
	}

	opts := value.NewStruct()
	for _, sp := range parsed {
		field := strings.ReplaceAll(sp.field, "-", "_")
		if seen[sp.field] {
			opts.Set(field, strArrayValue(collected[sp.field]))
			continue
		}
		if sp.kind == "req" {
			return value.Obj{O: value.NewError("getopts", "missing required option -" + sp.short)}, nil
		}
		opts.Set(field, value.None{})
	}

	out := value.NewStruct()
	out.Set("opts", value.Ref{M: opts})
	out.Set("free", strArrayValue(free))
	return value.Ref{M: out}, nil
}

func strArrayValue(ss []string) value.Value {
	elems := make([]value.Value, len(ss))
	for i, s := range ss {
		elems[i] = value.Obj{O: value.NewString(s)}
	}
	return value.Ref{M: value.NewArray(elems)}
}

func stringArray(v value.Value) ([]string, error) {
	ref, ok := v.(value.Ref)
	if !ok {
		return nil, errType("expected an array")
	}
	arr, ok := ref.M.(*value.Array)
	if !ok {
		return nil, errType("expected an array")
	}
	out := make([]string, len(arr.Elems))
	for i, e := range arr.Elems {
		s, ok := asString(e)
		if !ok {
			return nil, errType("expected an array of strings")
		}
		out[i] = s
	}
	return out, nil
}

func stringArrayArray(v value.Value) ([][]string, error) {
	ref, ok := v.(value.Ref)
	if !ok {
		return nil, errType("expected an array")
	}
	arr, ok := ref.M.(*value.Array)
	if !ok {
		return nil, errType("expected an array")
	}
	out := make([][]string, len(arr.Elems))
	for i, e := range arr.Elems {
		ss, err := stringArray(e)
		if err != nil {
			return nil, err
		}
		out[i] = ss
	}
	return out, nil
}
