package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/luckboy/unlab-gpu/internal/ast"
)

// Script-defined function bodies are serialized with encoding/gob rather
// than the hand-rolled identity-preserving scheme the rest of this package
// uses: AST nodes never participate in the Ref/Weak sharing or cycles that
// motivate writing a custom codec for Values, so gob's ordinary (non
// identity-preserving) interface encoding is sufficient (see DESIGN.md).
func init() {
	gob.Register(&ast.Var{})
	gob.Register(&ast.Rel{})
	gob.Register(&ast.Abs{})
	gob.Register(&ast.FunDef{})
	gob.Register(&ast.ModDef{})
	gob.Register(&ast.Use{})
	gob.Register(&ast.ExprStmt{})
	gob.Register(&ast.Assign{})
	gob.Register(&ast.If{})
	gob.Register(&ast.For{})
	gob.Register(&ast.While{})
	gob.Register(&ast.Break{})
	gob.Register(&ast.Continue{})
	gob.Register(&ast.Return{})
	gob.Register(&ast.QuitStmt{})
	gob.Register(&ast.ExitStmt{})
	gob.Register(&ast.IntLit{})
	gob.Register(&ast.FloatLit{})
	gob.Register(&ast.StringLit{})
	gob.Register(&ast.BoolLit{})
	gob.Register(&ast.NoneLit{})
	gob.Register(&ast.NameExpr{})
	gob.Register(&ast.Unary{})
	gob.Register(&ast.Binary{})
	gob.Register(&ast.Logic{})
	gob.Register(&ast.Range{})
	gob.Register(&ast.FieldAccess{})
	gob.Register(&ast.Index{})
	gob.Register(&ast.Call{})
	gob.Register(&ast.MatrixLit{})
	gob.Register(&ast.ArrayLit{})
	gob.Register(&ast.StructLit{})
}

func encodeBody(body []ast.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBody(data []byte) ([]ast.Node, error) {
	var body []ast.Node
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
