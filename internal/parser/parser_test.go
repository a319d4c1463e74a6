package parser

import (
	"testing"

	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := Parse(src, &diag.Collector{})
	if err != nil {
		t.Fatalf("Parse(%q) error: %s", src, err)
	}
	return f
}

func TestParseUsingsAndFunction(t *testing.T) {
	f := mustParse(t, `
using io
int main() {
	return 0;
}
`)
	if len(f.Usings) != 1 || f.Usings[0] != "io" {
		t.Fatalf("Usings = %v, want [io]", f.Usings)
	}
	if len(f.Decls) != 1 {
		t.Fatalf("Decls = %d, want 1", len(f.Decls))
	}
	fn := f.Decls[0]
	if fn.Kind != ast.FUNCTION || fn.Name != "main" || fn.Type != "int" {
		t.Fatalf("fn = %+v, want FUNCTION main/int", fn)
	}
	if len(fn.Children) != 1 || fn.Children[0].Kind != ast.RETURN {
		t.Fatalf("fn body = %+v, want single RETURN", fn.Children)
	}
}

func TestParseFunctionParams(t *testing.T) {
	f := mustParse(t, `int add(int a, int b) { return a; }`)
	fn := f.Decls[0]
	if len(fn.Params) != 2 || fn.Params[0] != (ast.Param{Type: "int", Name: "a"}) || fn.Params[1] != (ast.Param{Type: "int", Name: "b"}) {
		t.Fatalf("Params = %+v", fn.Params)
	}
}

func TestParseClassFieldsAndMethods(t *testing.T) {
	f := mustParse(t, `
class Point {
	int x = 0;
	int y;
	int sum() {
		return x;
	}
}
`)
	cls := f.Decls[0]
	if cls.Kind != ast.CLASS || cls.Name != "Point" {
		t.Fatalf("cls = %+v", cls)
	}
	if len(cls.Children) != 3 {
		t.Fatalf("members = %d, want 3", len(cls.Children))
	}
	xField := cls.Children[0]
	if xField.Kind != ast.FIELD || xField.Name != "x" || xField.Type != "int" || len(xField.Children) != 1 {
		t.Fatalf("x field = %+v", xField)
	}
	yField := cls.Children[1]
	if yField.Kind != ast.FIELD || len(yField.Children) != 0 {
		t.Fatalf("y field = %+v, want no initializer", yField)
	}
	method := cls.Children[2]
	if method.Kind != ast.METHOD || method.Name != "sum" || method.Type != "int" {
		t.Fatalf("method = %+v", method)
	}
}

func TestParseTypedDeclarations(t *testing.T) {
	f := mustParse(t, `
void run() {
	int i = 0;
	list:int xs = [1, 2, 3];
	any:Point p = origin;
}
`)
	body := f.Decls[0].Children
	if len(body) != 3 {
		t.Fatalf("body = %d statements, want 3", len(body))
	}
	if body[0].Kind != ast.DECLARE || body[0].Type != "int" || body[0].Name != "i" {
		t.Fatalf("decl0 = %+v", body[0])
	}
	if body[1].Kind != ast.DECLARE_LIST || body[1].ElemType != "int" || body[1].Name != "xs" {
		t.Fatalf("decl1 = %+v", body[1])
	}
	if len(body[1].Children) != 1 || body[1].Children[0].Kind != ast.LIST_LITERAL || len(body[1].Children[0].Children) != 3 {
		t.Fatalf("decl1 rhs = %+v", body[1].Children)
	}
	if body[2].Kind != ast.DECLARE_CUSTOM || body[2].Type != "Point" || body[2].Name != "p" {
		t.Fatalf("decl2 = %+v", body[2])
	}
}

func TestParseIfElseChain(t *testing.T) {
	f := mustParse(t, `
void run() {
	if (1 == 2) {
		return;
	} else if (3 != 4) {
		return;
	} else {
		return;
	}
}
`)
	ifNode := f.Decls[0].Children[0]
	if ifNode.Kind != ast.IF_CHAIN {
		t.Fatalf("Kind = %s, want IF_CHAIN", ifNode.Kind)
	}
	if len(ifNode.Branches) != 3 {
		t.Fatalf("Branches = %d, want 3", len(ifNode.Branches))
	}
	if ifNode.Branches[0].Guard == nil || ifNode.Branches[1].Guard == nil {
		t.Fatalf("first two branches must carry a guard")
	}
	if ifNode.Branches[2].Guard != nil {
		t.Fatalf("trailing else branch must not carry a guard")
	}
}

func TestParseWhileAndBreakContinue(t *testing.T) {
	f := mustParse(t, `
void run() {
	while (1 == 1) {
		break;
		continue;
	}
}
`)
	w := f.Decls[0].Children[0]
	if w.Kind != ast.WHILE {
		t.Fatalf("Kind = %s, want WHILE", w.Kind)
	}
	body := w.Children[1]
	if body.Children[0].Kind != ast.BREAK || body.Children[1].Kind != ast.CONTINUE {
		t.Fatalf("while body = %+v", body.Children)
	}
}

func TestParseForIn(t *testing.T) {
	f := mustParse(t, `
void run() {
	for (int x in xs) {
		return;
	}
}
`)
	n := f.Decls[0].Children[0]
	if n.Kind != ast.FOR_IN || n.Type != "int" || n.Name != "x" {
		t.Fatalf("FOR_IN = %+v", n)
	}
	if n.Children[0].Kind != ast.VAR || n.Children[0].Data != "xs" {
		t.Fatalf("FOR_IN list expr = %+v", n.Children[0])
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 should nest as 1 + (2 * 3), not (1 + 2) * 3.
	f := mustParse(t, `int run() { return 1 + 2 * 3; }`)
	ret := f.Decls[0].Children[0]
	add := ret.Children[0]
	if add.Kind != ast.BINOP || add.Data != "+" {
		t.Fatalf("top op = %+v, want BINOP +", add)
	}
	rhs := add.Children[1]
	if rhs.Kind != ast.BINOP || rhs.Data != "*" {
		t.Fatalf("rhs op = %+v, want BINOP *", rhs)
	}
}

func TestParseComparisonIsNonAssociative(t *testing.T) {
	f := mustParse(t, `int run() { return 1 + 1 == 2; }`)
	ret := f.Decls[0].Children[0]
	eq := ret.Children[0]
	if eq.Kind != ast.BINOP || eq.Data != "==" {
		t.Fatalf("top op = %+v, want BINOP ==", eq)
	}
	if eq.Children[0].Kind != ast.BINOP || eq.Children[0].Data != "+" {
		t.Fatalf("lhs of == = %+v, want BINOP +", eq.Children[0])
	}
	if _, err := Parse(`int run() { return 1 == 1 == 1; }`, &diag.Collector{}); err == nil {
		t.Fatalf("expected error for chained comparison 1 == 1 == 1")
	}
}

func TestParseUnaryMinusDesugarsToBinop(t *testing.T) {
	f := mustParse(t, `int run() { return -5; }`)
	ret := f.Decls[0].Children[0]
	neg := ret.Children[0]
	if neg.Kind != ast.BINOP || neg.Data != "-" {
		t.Fatalf("unary minus = %+v, want BINOP -", neg)
	}
	if neg.Children[0].Kind != ast.INT || neg.Children[0].Data != int64(0) {
		t.Fatalf("unary minus lhs = %+v, want INT 0", neg.Children[0])
	}
}

func TestParseCallMethodAndGetAttrChain(t *testing.T) {
	f := mustParse(t, `
void run() {
	this.items.add(1);
	int n = this.count;
}
`)
	body := f.Decls[0].Children
	call := body[0]
	if call.Kind != ast.CALL_METHOD || call.Name != "add" {
		t.Fatalf("call = %+v", call)
	}
	recv := call.Children[0]
	if recv.Kind != ast.GET_ATTR || recv.Name != "items" {
		t.Fatalf("receiver = %+v, want GET_ATTR items", recv)
	}
	if recv.Children[0].Kind != ast.THIS {
		t.Fatalf("receiver base = %+v, want THIS", recv.Children[0])
	}

	decl := body[1]
	attr := decl.Children[0]
	if attr.Kind != ast.GET_ATTR || attr.Name != "count" || attr.Children[0].Kind != ast.THIS {
		t.Fatalf("decl rhs = %+v", attr)
	}
}

func TestParsePostIncDec(t *testing.T) {
	f := mustParse(t, `
void run() {
	i++;
	i--;
}
`)
	body := f.Decls[0].Children
	if body[0].Kind != ast.POSTINC || body[1].Kind != ast.POSTDEC {
		t.Fatalf("body = %+v", body)
	}
}

func TestParseAssignment(t *testing.T) {
	f := mustParse(t, `void run() { i = 5; }`)
	n := f.Decls[0].Children[0]
	if n.Kind != ast.ASSIGN {
		t.Fatalf("Kind = %s, want ASSIGN", n.Kind)
	}
	if n.Children[0].Kind != ast.VAR || n.Children[0].Data != "i" {
		t.Fatalf("lhs = %+v", n.Children[0])
	}
	if n.Children[1].Kind != ast.INT || n.Children[1].Data != int64(5) {
		t.Fatalf("rhs = %+v", n.Children[1])
	}
}

func TestParseListLiteralAndCall(t *testing.T) {
	f := mustParse(t, `void run() { print([1, 2], 3); }`)
	n := f.Decls[0].Children[0]
	if n.Kind != ast.CALL || n.Name != "print" {
		t.Fatalf("Kind = %+v", n)
	}
	args := n.Children[0]
	if args.Kind != ast.ARG_LIST || len(args.Children) != 2 {
		t.Fatalf("args = %+v", args)
	}
	list := args.Children[0]
	if list.Kind != ast.LIST_LITERAL || len(list.Children) != 2 {
		t.Fatalf("list literal = %+v", list)
	}
}

func TestParseNoTopLevelDeclsIsError(t *testing.T) {
	if _, err := Parse("", &diag.Collector{}); err == nil {
		t.Fatalf("expected error for empty program")
	}
}

func TestParseMissingSemiIsError(t *testing.T) {
	if _, err := Parse(`void run() { int i = 1 }`, &diag.Collector{}); err == nil {
		t.Fatalf("expected error for missing ';'")
	}
}
