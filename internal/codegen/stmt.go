package codegen

import (
	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
	"tinygo.org/x/go-llvm"
)

// genStmt lowers one statement node (spec.md §4.5 "Statement lowering").
func (e *Emitter) genStmt(n *ast.Node) error {
	switch n.Kind {
	case ast.BLOCK:
		e.pushScope()
		defer e.popScope()
		for _, s := range n.Children {
			if err := e.genStmt(s); err != nil {
				return err
			}
		}
		return nil
	case ast.RETURN:
		return e.genReturn(n)
	case ast.RETURN_VOID:
		if e.curRetName != "void" {
			return diag.Errorf(diag.ErrType, "line %d: void return from non-void function", n.Line)
		}
		e.builder.CreateRetVoid()
		e.terminated = true
		return nil
	case ast.DECLARE:
		return e.genDeclare(n)
	case ast.DECLARE_LIST:
		return e.genDeclareList(n)
	case ast.DECLARE_CUSTOM:
		return e.genDeclareCustom(n)
	case ast.ASSIGN:
		return e.genAssign(n)
	case ast.IF_CHAIN:
		return e.genIfChain(n)
	case ast.WHILE:
		return e.genWhile(n)
	case ast.FOR_IN:
		return e.genForIn(n)
	case ast.BREAK:
		return e.genBreak(n)
	case ast.CONTINUE:
		return e.genContinue(n)
	default:
		_, _, err := e.genExpr(n)
		return err
	}
}

func (e *Emitter) genReturn(n *ast.Node) error {
	if e.curRetName == "void" {
		return diag.Errorf(diag.ErrType, "line %d: non-void return in void function", n.Line)
	}
	v, _, err := e.genExpr(n.Children[0])
	if err != nil {
		return err
	}
	e.builder.CreateRet(v)
	e.terminated = true
	return nil
}

func (e *Emitter) genDeclare(n *ast.Node) error {
	v, _, err := e.genExpr(n.Children[0])
	if err != nil {
		return err
	}
	t, err := e.types.IRType(n.Type)
	if err != nil {
		return err
	}
	slot := e.builder.CreateAlloca(t, n.Name)
	e.builder.CreateStore(v, slot)
	e.bind(n.Name, slot, n.Type)
	return nil
}

func (e *Emitter) genDeclareCustom(n *ast.Node) error {
	v, typeName, err := e.genExpr(n.Children[0])
	if err != nil {
		return err
	}
	e.bind(n.Name, e.addrOf(v, typeName), typeName)
	return nil
}

// addrOf gives a value its own stack slot, since the scope table binds
// names to storage addresses rather than SSA values (spec.md §3 "Symbol
// table (per function)").
func (e *Emitter) addrOf(v llvm.Value, typeName string) llvm.Value {
	slot := e.builder.CreateAlloca(v.Type(), "")
	e.builder.CreateStore(v, slot)
	return slot
}

// genDeclareList lowers `list:<elem> n = rhs` (spec.md §4.5
// "declare_list"): a list_literal RHS is heap-copied through
// core_list_create_from; any other RHS (e.g. a function call already
// returning List*) is bound directly.
func (e *Emitter) genDeclareList(n *ast.Node) error {
	rhs := n.Children[0]
	var listVal llvm.Value
	if rhs.Kind == ast.LIST_LITERAL {
		v, _, err := e.genListLiteral(rhs, n.ElemType)
		if err != nil {
			return err
		}
		listVal = v
	} else {
		v, _, err := e.genExpr(rhs)
		if err != nil {
			return err
		}
		listVal = v
	}
	e.bind(n.Name, e.addrOf(listVal, "list:"+n.ElemType), "list:"+n.ElemType)
	return nil
}

// genListLiteral heap-allocates a buffer sized for elemType, copies each
// lowered element into it, and wraps it via core_list_create_from (spec.md
// §4.5 "declare_list", §8 property 8).
func (e *Emitter) genListLiteral(n *ast.Node, elemType string) (llvm.Value, string, error) {
	if elemType == "" && len(n.Children) > 0 {
		_, inferred, err := e.genExpr(n.Children[0])
		if err != nil {
			return llvm.Value{}, "", err
		}
		elemType = inferred
	}
	elemIRType, err := e.types.IRType(elemType)
	if err != nil {
		return llvm.Value{}, "", err
	}
	isPointer := elemIRType.TypeKind() == llvm.PointerTypeKind

	length := len(n.Children)
	elemSize := e.sizeOf(elemIRType)
	mallocFn, err := e.getMalloc()
	if err != nil {
		return llvm.Value{}, "", err
	}
	totalSize := llvm.ConstInt(llvm.Int64Type(), uint64(length)*elemSize, false)
	buf := e.builder.CreateCall(mallocFn, []llvm.Value{totalSize}, "")
	typedBuf := e.builder.CreateBitCast(buf, llvm.PointerType(elemIRType, 0), "")

	for i, c := range n.Children {
		val, _, err := e.genExpr(c)
		if err != nil {
			return llvm.Value{}, "", err
		}
		idx := llvm.ConstInt(llvm.Int32Type(), uint64(i), false)
		elemPtr := e.builder.CreateGEP(typedBuf, []llvm.Value{idx}, "")
		e.builder.CreateStore(val, elemPtr)
	}

	createFn, err := e.getListCreateFrom()
	if err != nil {
		return llvm.Value{}, "", err
	}
	isPtrConst := llvm.ConstInt(llvm.Int1Type(), 0, false)
	if isPointer {
		isPtrConst = llvm.ConstInt(llvm.Int1Type(), 1, false)
	}
	args := []llvm.Value{
		buf,
		llvm.ConstInt(llvm.Int32Type(), uint64(length), false),
		llvm.ConstInt(llvm.Int32Type(), elemSize, false),
		isPtrConst,
	}
	list := e.builder.CreateCall(createFn, args, "")
	return list, "list:" + elemType, nil
}

// sizeOf returns the byte width the list runtime expects for a list
// element's IR type. Only the shapes the type registry produces are
// possible here: i32, float (4 bytes), i1 (stored as a full byte), and
// pointers.
func (e *Emitter) sizeOf(t llvm.Type) uint64 {
	switch t.TypeKind() {
	case llvm.IntegerTypeKind:
		if t.IntTypeWidth() == 1 {
			return 1
		}
		return 4
	case llvm.FloatTypeKind:
		return 4
	case llvm.PointerTypeKind:
		return 8
	default:
		return 8
	}
}

func (e *Emitter) genAssign(n *ast.Node) error {
	target := n.Children[0]
	val, _, err := e.genExpr(n.Children[1])
	if err != nil {
		return err
	}
	switch target.Kind {
	case ast.VAR:
		name := target.Data.(string)
		b, ok := e.lookup(name)
		if !ok {
			return diag.Errorf(diag.ErrResolve, "line %d: undefined variable %q", n.Line, name)
		}
		val = e.coerceStore(val, b.Ptr)
		e.builder.CreateStore(val, b.Ptr)
		return nil
	case ast.GET_ATTR:
		objVal, objType, err := e.genExpr(target.Children[0])
		if err != nil {
			return err
		}
		className := elemTypeName(objType)
		class, ok := e.types.Class(className)
		if !ok {
			return diag.Errorf(diag.ErrResolve, "line %d: %q is not a class value", n.Line, objType)
		}
		idx, ok := class.FieldIndex(target.Name)
		if !ok {
			return diag.Errorf(diag.ErrResolve, "line %d: %s has no field %q", n.Line, className, target.Name)
		}
		gep := e.builder.CreateStructGEP(objVal, idx, "")
		val = e.coerceStore(val, gep)
		e.builder.CreateStore(val, gep)
		return nil
	default:
		return diag.Errorf(diag.ErrType, "line %d: invalid assignment target", n.Line)
	}
}

// coerceStore bitcasts val to the slot's pointee type when both are
// pointers but of mismatched pointee type (spec.md §4.5 "assign": "store
// attempts an implicit pointer-to-pointer bitcast").
func (e *Emitter) coerceStore(val llvm.Value, slot llvm.Value) llvm.Value {
	want := slot.Type().ElementType()
	if val.Type() == want {
		return val
	}
	if val.Type().TypeKind() == llvm.PointerTypeKind && want.TypeKind() == llvm.PointerTypeKind {
		return e.builder.CreateBitCast(val, want, "")
	}
	return val
}

// genIfChain lowers an if/else-if/else chain into a then/next/end basic
// block shape, mirroring the teacher's genIf (spec.md §4.5 "if_chain").
func (e *Emitter) genIfChain(n *ast.Node) error {
	end := e.newBlock("if_end")
	// reachesEnd records whether any path branches to if_end; when none
	// does, if_end is closed with `unreachable`.
	reachesEnd := false

	for i, br := range n.Branches {
		isLast := i == len(n.Branches)-1

		if br.Guard == nil {
			// Trailing `else`: falls straight into its body.
			if err := e.genStmt(br.Body); err != nil {
				return err
			}
			if !e.terminated {
				e.builder.CreateBr(end)
				reachesEnd = true
			}
			break
		}
		if isLast {
			reachesEnd = true // a false final guard branches to if_end
		}

		then := e.newBlock("if_then")
		next := end
		if !isLast {
			next = e.newBlock("if_next")
		}

		guard, _, err := e.genExpr(br.Guard)
		if err != nil {
			return err
		}
		e.builder.CreateCondBr(guard, then, next)

		e.positionAt(then)
		if err := e.genStmt(br.Body); err != nil {
			return err
		}
		if !e.terminated {
			e.builder.CreateBr(end)
			reachesEnd = true
		}

		if !isLast {
			e.positionAt(next)
		}
	}

	e.positionAt(end)
	if !reachesEnd {
		e.builder.CreateUnreachable()
		e.terminated = true
	}
	return nil
}

func (e *Emitter) genWhile(n *ast.Node) error {
	head := e.newBlock("while_head")
	body := e.newBlock("while_body")
	end := e.newBlock("while_end")

	e.builder.CreateBr(head)
	e.positionAt(head)
	guard, _, err := e.genExpr(n.Children[0])
	if err != nil {
		return err
	}
	e.builder.CreateCondBr(guard, body, end)

	e.positionAt(body)
	e.loopStack.Push(loopTarget{continueBlock: head, breakBlock: end})
	err = e.genStmt(n.Children[1])
	e.loopStack.Pop()
	if err != nil {
		return err
	}
	if !e.terminated {
		e.builder.CreateBr(head)
	}

	e.positionAt(end)
	return nil
}

// genForIn lowers `for (T x in L) { ... }` over a list value (spec.md
// §4.5 "for_in").
func (e *Emitter) genForIn(n *ast.Node) error {
	listVal, _, err := e.genExpr(n.Children[0])
	if err != nil {
		return err
	}
	elemType, err := e.types.IRType(n.Type)
	if err != nil {
		return err
	}

	idxSlot := e.builder.CreateAlloca(llvm.Int32Type(), "idx")
	e.builder.CreateStore(llvm.ConstInt(llvm.Int32Type(), 0, false), idxSlot)

	cond := e.newBlock("for_cond")
	body := e.newBlock("for_body")
	cont := e.newBlock("for_cont")
	end := e.newBlock("for_end")

	e.builder.CreateBr(cond)
	e.positionAt(cond)
	idx := e.builder.CreateLoad(idxSlot, "idx")
	lenFn, err := e.getListLen()
	if err != nil {
		return err
	}
	length := e.builder.CreateCall(lenFn, []llvm.Value{listVal}, "")
	cmp := e.builder.CreateICmp(llvm.IntSLT, idx, length, "")
	e.builder.CreateCondBr(cmp, body, end)

	e.positionAt(body)
	e.pushScope()
	idx = e.builder.CreateLoad(idxSlot, "idx")
	getFn, err := e.getListGet()
	if err != nil {
		e.popScope()
		return err
	}
	rawPtr := e.builder.CreateCall(getFn, []llvm.Value{listVal, idx}, "")
	elemSlot := e.builder.CreateAlloca(elemType, n.Name)
	typedPtr := e.builder.CreateBitCast(rawPtr, llvm.PointerType(elemType, 0), "")
	loaded := e.builder.CreateLoad(typedPtr, "")
	e.builder.CreateStore(loaded, elemSlot)
	e.bind(n.Name, elemSlot, n.Type)

	e.loopStack.Push(loopTarget{continueBlock: cont, breakBlock: end})
	err = e.genStmt(n.Children[1])
	e.loopStack.Pop()
	e.popScope()
	if err != nil {
		return err
	}
	if !e.terminated {
		e.builder.CreateBr(cont)
	}

	e.positionAt(cont)
	idx = e.builder.CreateLoad(idxSlot, "idx")
	next := e.builder.CreateAdd(idx, llvm.ConstInt(llvm.Int32Type(), 1, false), "")
	e.builder.CreateStore(next, idxSlot)
	e.builder.CreateBr(cond)

	e.positionAt(end)
	return nil
}

func (e *Emitter) genBreak(n *ast.Node) error {
	top, ok := e.loopStack.Peek().(loopTarget)
	if !ok {
		return diag.Errorf(diag.ErrType, "line %d: break outside of a loop", n.Line)
	}
	e.builder.CreateBr(top.breakBlock)
	e.terminated = true
	return nil
}

func (e *Emitter) genContinue(n *ast.Node) error {
	top, ok := e.loopStack.Peek().(loopTarget)
	if !ok {
		return diag.Errorf(diag.ErrType, "line %d: continue outside of a loop", n.Line)
	}
	e.builder.CreateBr(top.continueBlock)
	e.terminated = true
	return nil
}
