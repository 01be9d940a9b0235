package doctree

import (
	"fmt"
	"strings"
)

// Render formats t as indented plain text (spec §4.9 names the tree shape
// but not a wire format; this rendering is this codebase's own choice, not
// carried over from original_source/). No REPL builtin or CLI command in
// this module calls it.
func Render(t Tree) string {
	var b strings.Builder
	render(&b, t, 0)
	return b.String()
}

func render(b *strings.Builder, t Tree, depth int) {
	indent := strings.Repeat("  ", depth)
	if desc, ok := t.Desc(); ok {
		fmt.Fprintf(b, "%s# %s\n", indent, desc)
	}
	for _, v := range t.Vars() {
		fmt.Fprintf(b, "%s%s%s\n", indent, v.Name, sigSuffix(v.Sig))
		if v.HasDoc {
			fmt.Fprintf(b, "%s  # %s\n", indent, v.Doc)
		}
	}
	for _, sub := range t.Subtrees() {
		fmt.Fprintf(b, "%smod %s {\n", indent, sub.Name)
		render(b, sub.Tree, depth+1)
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

func sigSuffix(s Sig) string {
	switch {
	case s.IsFun:
		return "(" + strings.Join(s.FunArgs, ", ") + ")"
	case s.IsBuiltinFun:
		parts := make([]string, len(s.BuiltinArgs))
		for i, a := range s.BuiltinArgs {
			switch a.Kind {
			case ArgOptional:
				parts[i] = a.Name + "?"
			case ArgDotDotDot:
				parts[i] = a.Name + "..."
			default:
				parts[i] = a.Name
			}
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return ""
	}
}
