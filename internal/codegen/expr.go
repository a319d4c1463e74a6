package codegen

import (
	"fmt"
	"strings"

	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/mapfile"
	"github.com/vladisrael/arx-lang/internal/types"
	"tinygo.org/x/go-llvm"
)

// genExpr lowers an expression node, returning its IR value and its
// static Artemis type name (spec.md §4.5 "Expression lowering").
func (e *Emitter) genExpr(n *ast.Node) (llvm.Value, string, error) {
	switch n.Kind {
	case ast.INT:
		return llvm.ConstInt(llvm.Int32Type(), uint64(n.Data.(int64)), true), "int", nil
	case ast.FLOAT:
		return llvm.ConstFloat(llvm.FloatType(), n.Data.(float64)), "float", nil
	case ast.BOOL:
		v := uint64(0)
		if n.Data.(bool) {
			v = 1
		}
		return llvm.ConstInt(llvm.Int1Type(), v, false), "bool", nil
	case ast.STRING:
		return e.internString(n.Data.(string)), "string", nil
	case ast.VAR:
		return e.genVar(n.Data.(string))
	case ast.THIS:
		if e.curClass == nil {
			return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: 'this' used outside a method", n.Line)
		}
		return e.thisVal, "any:" + e.curClass.Name, nil
	case ast.BINOP:
		return e.genBinop(n)
	case ast.GET_ATTR:
		return e.genGetAttr(n)
	case ast.CALL:
		return e.genCall(n)
	case ast.CALL_METHOD:
		return e.genCallMethod(n)
	case ast.OBJECT_CREATION:
		return e.genObjectCreation(n.Name, n.Children[0])
	case ast.POSTINC:
		return e.genPostIncDec(n, true)
	case ast.POSTDEC:
		return e.genPostIncDec(n, false)
	case ast.LIST_LITERAL:
		return e.genListLiteral(n, "")
	default:
		return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: %s is not a valid expression", n.Line, n.Kind)
	}
}

func (e *Emitter) genVar(name string) (llvm.Value, string, error) {
	b, ok := e.lookup(name)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "undefined variable %q", name)
	}
	return e.builder.CreateLoad(b.Ptr, name), b.TypeName, nil
}

func (e *Emitter) genGetAttr(n *ast.Node) (llvm.Value, string, error) {
	objVal, objType, err := e.genExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, "", err
	}
	className := elemTypeName(objType)
	class, ok := e.types.Class(className)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: %q is not a class value", n.Line, objType)
	}
	idx, ok := class.FieldIndex(n.Name)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: %s has no field %q", n.Line, className, n.Name)
	}
	gep := e.builder.CreateStructGEP(objVal, idx, "")
	return e.builder.CreateLoad(gep, n.Name), class.Fields[idx].Type, nil
}

// genCall lowers a bare `name(args)`: a class name means object creation,
// otherwise it is a top-level function call (spec.md §4.5 "call").
func (e *Emitter) genCall(n *ast.Node) (llvm.Value, string, error) {
	if _, ok := e.types.Class(n.Name); ok {
		return e.genObjectCreation(n.Name, n.Children[0])
	}
	fnVal, ok := e.funcs[n.Name]
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: undefined function %q", n.Line, n.Name)
	}
	args, err := e.genArgs(n.Children[0])
	if err != nil {
		return llvm.Value{}, "", err
	}
	retName := e.funcRetName(n.Name)
	return e.builder.CreateCall(fnVal, args, ""), retName, nil
}

func (e *Emitter) funcRetName(name string) string {
	if sig, ok := e.selfSigs[name]; ok {
		return sig.Ret
	}
	return "int"
}

func (e *Emitter) genArgs(argsNode *ast.Node) ([]llvm.Value, error) {
	args := make([]llvm.Value, len(argsNode.Children))
	for i, a := range argsNode.Children {
		v, _, err := e.genExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// genCallMethod implements the five-case call_method dispatch order of
// spec.md §4.5.
func (e *Emitter) genCallMethod(n *ast.Node) (llvm.Value, string, error) {
	receiver := n.Children[0]
	argsNode := n.Children[1]

	// Case 4: `this.m(...)`.
	if receiver.Kind == ast.THIS {
		if e.curClass == nil {
			return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: 'this' used outside a method", n.Line)
		}
		return e.callInstanceMethod(e.curClass, e.thisVal, n.Name, argsNode)
	}

	// Case 1: receiver is a local variable of known class type.
	if receiver.Kind == ast.VAR {
		name := receiver.Data.(string)
		if b, ok := e.lookup(name); ok {
			className := elemTypeName(b.TypeName)
			if class, ok := e.types.Class(className); ok {
				objVal := e.builder.CreateLoad(b.Ptr, name)
				return e.callInstanceMethod(class, objVal, n.Name, argsNode)
			}
		} else {
			// Case 2: receiver names a loaded extern-C module.
			if mod, ok := e.externs[name]; ok {
				return e.callExtern(mod, name, n.Name, argsNode, n.Line)
			}
			// Case 3: receiver names a resolved sibling Artemis module.
			if sigs, ok := e.siblings[name]; ok {
				return e.callSibling(name, sigs, n.Name, argsNode, n.Line)
			}
		}
	}

	return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: undefined object or module", n.Line)
}

func (e *Emitter) callInstanceMethod(class *types.Class, recv llvm.Value, method string, argsNode *ast.Node) (llvm.Value, string, error) {
	mangled := class.Name + "_" + method
	fnVal, ok := e.methods[mangled]
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "%s has no method %q", class.Name, method)
	}
	args, err := e.genArgs(argsNode)
	if err != nil {
		return llvm.Value{}, "", err
	}
	full := append([]llvm.Value{recv}, args...)
	return e.builder.CreateCall(fnVal, full, ""), "", nil
}

func (e *Emitter) callExtern(mod *mapfile.Module, moduleName, fn string, argsNode *ast.Node, line int) (llvm.Value, string, error) {
	args, err := e.genArgs(argsNode)
	if err != nil {
		return llvm.Value{}, "", err
	}
	argNames := make([]string, len(args))
	for i, a := range args {
		argNames[i] = types.CanonicalArgName(a.Type())
	}
	ov, ok := mod.MatchOverload(fn, argNames)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: %s.%s has no overload for (%s)", line, moduleName, fn, strings.Join(argNames, ","))
	}
	fnVal, err := e.declareExtern(ov.Symbol, ov.ArgTypes, ov.RetType)
	if err != nil {
		return llvm.Value{}, "", err
	}
	return e.builder.CreateCall(fnVal, args, ""), ov.RetType, nil
}

func (e *Emitter) callSibling(moduleName string, sigs map[string]FuncSig, fn string, argsNode *ast.Node, line int) (llvm.Value, string, error) {
	sig, ok := sigs[fn]
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "line %d: sibling module %q has no function %q", line, moduleName, fn)
	}
	args, err := e.genArgs(argsNode)
	if err != nil {
		return llvm.Value{}, "", err
	}
	mangled := moduleName + "_" + fn
	fnVal := e.mod.NamedFunction(mangled)
	if fnVal.IsNil() {
		ret, err := resolveIRType(e.types, sig.Ret)
		if err != nil {
			return llvm.Value{}, "", err
		}
		params := make([]llvm.Type, len(sig.Params))
		for i, p := range sig.Params {
			t, err := resolveIRType(e.types, p)
			if err != nil {
				return llvm.Value{}, "", err
			}
			params[i] = t
		}
		fnVal = llvm.AddFunction(e.mod, mangled, llvm.FunctionType(ret, params, false))
	}
	return e.builder.CreateCall(fnVal, args, ""), sig.Ret, nil
}

func (e *Emitter) genPostIncDec(n *ast.Node, inc bool) (llvm.Value, string, error) {
	target := n.Children[0]
	if target.Kind != ast.VAR {
		return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: postinc/postdec target must be a variable", n.Line)
	}
	name := target.Data.(string)
	b, ok := e.lookup(name)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "undefined variable %q", name)
	}
	orig := e.builder.CreateLoad(b.Ptr, name)
	var one llvm.Value
	var next llvm.Value
	switch b.TypeName {
	case "int":
		one = llvm.ConstInt(llvm.Int32Type(), 1, false)
		if inc {
			next = e.builder.CreateAdd(orig, one, "")
		} else {
			next = e.builder.CreateSub(orig, one, "")
		}
	default:
		return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: postinc/postdec is integer-only", n.Line)
	}
	e.builder.CreateStore(next, b.Ptr)
	return orig, b.TypeName, nil
}

// genBinop lowers a binary operator, with string-specific overrides for
// `==` and `+` and float/int auto-promotion (spec.md §4.5 "binop").
func (e *Emitter) genBinop(n *ast.Node) (llvm.Value, string, error) {
	lhs, lhsT, err := e.genExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, "", err
	}
	rhs, rhsT, err := e.genExpr(n.Children[1])
	if err != nil {
		return llvm.Value{}, "", err
	}
	op := n.Data.(string)

	if lhsT == "string" && rhsT == "string" {
		switch op {
		case "==":
			fn, err := e.getStringEqual()
			if err != nil {
				return llvm.Value{}, "", err
			}
			return e.builder.CreateCall(fn, []llvm.Value{lhs, rhs}, ""), "bool", nil
		case "+":
			fn, err := e.getStringConcat()
			if err != nil {
				return llvm.Value{}, "", err
			}
			return e.builder.CreateCall(fn, []llvm.Value{lhs, rhs}, ""), "string", nil
		default:
			return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: unsupported string operator %q", n.Line, op)
		}
	}

	useFloat := lhsT == "float" || rhsT == "float"
	if useFloat {
		if lhsT != "float" {
			lhs = e.builder.CreateSIToFP(lhs, llvm.FloatType(), "")
		}
		if rhsT != "float" {
			rhs = e.builder.CreateSIToFP(rhs, llvm.FloatType(), "")
		}
		switch op {
		case "+":
			return e.builder.CreateFAdd(lhs, rhs, ""), "float", nil
		case "-":
			return e.builder.CreateFSub(lhs, rhs, ""), "float", nil
		case "*":
			return e.builder.CreateFMul(lhs, rhs, ""), "float", nil
		case "/":
			return e.builder.CreateFDiv(lhs, rhs, ""), "float", nil
		case "==":
			return e.builder.CreateFCmp(llvm.FloatOEQ, lhs, rhs, ""), "bool", nil
		case "!=":
			return e.builder.CreateFCmp(llvm.FloatONE, lhs, rhs, ""), "bool", nil
		case "<":
			return e.builder.CreateFCmp(llvm.FloatOLT, lhs, rhs, ""), "bool", nil
		case "<=":
			return e.builder.CreateFCmp(llvm.FloatOLE, lhs, rhs, ""), "bool", nil
		case ">":
			return e.builder.CreateFCmp(llvm.FloatOGT, lhs, rhs, ""), "bool", nil
		case ">=":
			return e.builder.CreateFCmp(llvm.FloatOGE, lhs, rhs, ""), "bool", nil
		default:
			return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: unsupported operator %q", n.Line, op)
		}
	}

	switch op {
	case "+":
		return e.builder.CreateAdd(lhs, rhs, ""), "int", nil
	case "-":
		return e.builder.CreateSub(lhs, rhs, ""), "int", nil
	case "*":
		return e.builder.CreateMul(lhs, rhs, ""), "int", nil
	case "/":
		return e.builder.CreateSDiv(lhs, rhs, ""), "int", nil
	case "==":
		return e.builder.CreateICmp(llvm.IntEQ, lhs, rhs, ""), "bool", nil
	case "!=":
		return e.builder.CreateICmp(llvm.IntNE, lhs, rhs, ""), "bool", nil
	case "<":
		return e.builder.CreateICmp(llvm.IntSLT, lhs, rhs, ""), "bool", nil
	case "<=":
		return e.builder.CreateICmp(llvm.IntSLE, lhs, rhs, ""), "bool", nil
	case ">":
		return e.builder.CreateICmp(llvm.IntSGT, lhs, rhs, ""), "bool", nil
	case ">=":
		return e.builder.CreateICmp(llvm.IntSGE, lhs, rhs, ""), "bool", nil
	default:
		return llvm.Value{}, "", diag.Errorf(diag.ErrType, "line %d: unsupported operator %q", n.Line, op)
	}
}

// internString interns a decoded string literal as a private constant
// global, exposed as i8* (spec.md §4.5 "string"). Identical literal text
// shares one global.
func (e *Emitter) internString(text string) llvm.Value {
	if v, ok := e.strLits[text]; ok {
		return v
	}
	e.strSeq++
	name := fmt.Sprintf("string_%d", e.strSeq)
	v := e.builder.CreateGlobalStringPtr(text, name)
	e.strLits[text] = v
	return v
}
