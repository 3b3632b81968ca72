package element

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"

	"github.com/element-run/element/internal/ast"
	"github.com/element-run/element/internal/symbol"
)

// DumpAST renders main as an indented tree to w (the `-da` debug flag, spec
// §6), grounded on the teacher's own pattern of rendering internal trees for
// debug output rather than hand-rolled indentation.
func DumpAST(w io.Writer, main *ast.FunctionNode) {
	tree := treeprint.New()
	addFunctionNode(tree, main)
	fmt.Fprint(w, tree.String())
}

func addFunctionNode(parent treeprint.Tree, fn *ast.FunctionNode) {
	label := "fn"
	if fn.Name != "" {
		label = fmt.Sprintf("fn %s", fn.Name)
	}
	branch := parent.AddBranch(fmt.Sprintf("%s(%v)", label, fn.Params))
	addBlock(branch, fn.Body)
}

func addBlock(parent treeprint.Tree, b *ast.Block) {
	branch := parent.AddBranch("block")
	for _, stmt := range b.Statements {
		addNode(branch, stmt)
	}
}

// addNode renders the node kinds most useful to a reader skimming a debug
// dump; it falls back to the node's Go type name for anything more exotic,
// matching the spirit of a thin debug aid rather than an exhaustive pretty
// printer.
func addNode(parent treeprint.Tree, n ast.Node) {
	switch v := n.(type) {
	case *ast.Block:
		addBlock(parent, v)
	case *ast.FunctionLit:
		addFunctionNode(parent, v.Fn)
	case *ast.IfStmt:
		branch := parent.AddBranch("if")
		addNode(branch.AddBranch("cond"), v.Cond)
		addBlock(branch, v.Then)
		if v.Else != nil {
			addNode(branch.AddBranch("else"), v.Else)
		}
	case *ast.WhileStmt:
		branch := parent.AddBranch("while")
		addNode(branch.AddBranch("cond"), v.Cond)
		addBlock(branch, v.Body)
	case *ast.ForStmt:
		branch := parent.AddBranch(fmt.Sprintf("for %s in", v.VarName))
		addNode(branch, v.Iterable)
		addBlock(branch, v.Body)
	case *ast.ExprStmt:
		addNode(parent, v.Expr)
	case *ast.ReturnStmt:
		branch := parent.AddBranch("return")
		if v.Value != nil {
			addNode(branch, v.Value)
		}
	case *ast.BreakStmt:
		parent.AddNode("break")
	case *ast.ContinueStmt:
		parent.AddNode("continue")
	case *ast.YieldExpr:
		addNode(parent.AddBranch("yield"), v.Value)
	case *ast.BinaryExpr:
		branch := parent.AddBranch(fmt.Sprintf("binary %s", v.Op))
		addNode(branch, v.Left)
		addNode(branch, v.Right)
	case *ast.UnaryExpr:
		addNode(parent.AddBranch(fmt.Sprintf("unary %s", v.Op)), v.Operand)
	case *ast.AssignExpr:
		branch := parent.AddBranch(fmt.Sprintf("assign %s", v.Compound))
		addNode(branch.AddBranch("target"), v.Target)
		addNode(branch.AddBranch("value"), v.Value)
	case *ast.CallExpr:
		branch := parent.AddBranch("call")
		addNode(branch.AddBranch("callee"), v.Callee)
		for _, a := range v.Args {
			addNode(branch, a)
		}
	case *ast.PushExpr:
		branch := parent.AddBranch("push")
		addNode(branch.AddBranch("array"), v.Array)
		addNode(branch.AddBranch("value"), v.Value)
	case *ast.ArrayLit:
		branch := parent.AddBranch("array")
		for _, e := range v.Elements {
			addNode(branch, e)
		}
	case *ast.ObjectLit:
		branch := parent.AddBranch("object")
		for _, p := range v.Pairs {
			addNode(branch.AddBranch(p.Key.Name), p.Value)
		}
	case *ast.VariableNode:
		parent.AddNode(fmt.Sprintf("var %s", variableLabel(v)))
	case *ast.IntLit:
		parent.AddNode(fmt.Sprintf("int %d", v.Value))
	case *ast.FloatLit:
		parent.AddNode(fmt.Sprintf("float %v", v.Value))
	case *ast.StringLit:
		parent.AddNode(fmt.Sprintf("string %q", v.Value))
	case *ast.BoolLit:
		parent.AddNode(fmt.Sprintf("bool %v", v.Value))
	case *ast.NilLit:
		parent.AddNode("nil")
	default:
		parent.AddNode(fmt.Sprintf("%T", n))
	}
}

func variableLabel(v *ast.VariableNode) string {
	switch v.VariableType {
	case ast.VarThis:
		return "this"
	case ast.VarDollarDollar:
		return "$$"
	case ast.VarPositional:
		return fmt.Sprintf("$%d", v.Positional)
	case ast.VarUnderscore:
		return "_"
	default:
		return v.Name
	}
}

// DumpSymbols renders every interned (hash, name) pair in hash order (the
// `-ds` debug flag, spec §6), using symbol.Table.Entries which exists
// expressly for this and the blob encoder.
func DumpSymbols(w io.Writer, table *symbol.Table) {
	tree := treeprint.New()
	for _, e := range table.Entries() {
		tree.AddNode(fmt.Sprintf("0x%08x  %s", e.Hash, e.Name))
	}
	fmt.Fprint(w, tree.String())
}

// DumpConstants renders the constant pool produced by a compile (the `-dc`
// debug flag, spec §6), one line per slot with its kind and payload.
func DumpConstants(w io.Writer, pool *symbol.Pool) {
	tree := treeprint.New()
	for i := 0; i < pool.Len(); i++ {
		c := pool.Get(i)
		tree.AddNode(fmt.Sprintf("[%d] %s", i, constantLabel(c)))
	}
	fmt.Fprint(w, tree.String())
}

func constantLabel(c symbol.Constant) string {
	switch c.Kind {
	case symbol.ConstNil:
		return "nil"
	case symbol.ConstBool:
		return fmt.Sprintf("bool %v", c.B)
	case symbol.ConstInt:
		return fmt.Sprintf("int %d", c.I)
	case symbol.ConstFloat:
		return fmt.Sprintf("float %v", c.F)
	case symbol.ConstString:
		return fmt.Sprintf("string %q", c.S)
	case symbol.ConstCode:
		name := c.Code.Name
		if name == "" {
			name = "(anonymous)"
		}
		return fmt.Sprintf("code %s", name)
	default:
		return "?"
	}
}
