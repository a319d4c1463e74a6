package codegen

import (
	"fmt"

	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/types"
	"tinygo.org/x/go-llvm"
)

// declareFunction adds fn's header to the module and records its LLVM
// value, so calls occurring before its textual position in the source
// still resolve (spec.md §4.5 "Function lowering").
func (e *Emitter) declareFunction(fn *ast.Node) (llvm.Value, error) {
	ret, err := resolveIRType(e.types, fn.Type)
	if err != nil {
		return llvm.Value{}, fmt.Errorf("function %q return type: %w", fn.Name, err)
	}
	params := make([]llvm.Type, len(fn.Params))
	for i, p := range fn.Params {
		t, err := resolveIRType(e.types, p.Type)
		if err != nil {
			return llvm.Value{}, fmt.Errorf("function %q parameter %q: %w", fn.Name, p.Name, err)
		}
		params[i] = t
	}
	v := e.mod.NamedFunction(fn.Name)
	if v.IsNil() {
		v = llvm.AddFunction(e.mod, fn.Name, llvm.FunctionType(ret, params, false))
	}
	e.funcs[fn.Name] = v
	paramTypes := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = p.Type
	}
	e.selfSigs[fn.Name] = FuncSig{Params: paramTypes, Ret: fn.Type}
	return v, nil
}

// lowerFunctionBody lowers fn's statements into its already-declared
// function value.
func (e *Emitter) lowerFunctionBody(fn *ast.Node) error {
	fnVal := e.funcs[fn.Name]
	entry := e.newBlock("entry")
	e.positionAt(entry)
	e.pushScope()
	defer e.popScope()

	for i, p := range fn.Params {
		t, _ := resolveIRType(e.types, p.Type)
		slot := e.builder.CreateAlloca(t, p.Name)
		e.builder.CreateStore(fnVal.Param(i), slot)
		e.bind(p.Name, slot, p.Type)
	}

	e.curRetName = fn.Type
	e.curClass = nil
	for _, stmt := range fn.Children {
		if err := e.genStmt(stmt); err != nil {
			return fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	return e.finishBlock(fn.Name, fn.Type)
}

// finishBlock closes out a function/method body: a fallen-through void
// body gets a synthesized ret_void; a fallen-through non-void body is a
// fatal "missing return" (spec.md §4.5 "Function lowering", §8 property
// 3).
func (e *Emitter) finishBlock(name, retType string) error {
	if e.terminated {
		return nil
	}
	if retType == "void" {
		e.builder.CreateRetVoid()
		e.terminated = true
		return nil
	}
	return diag.Errorf(diag.ErrType, "Missing return in function %s", name)
}

// declareClass creates the identified struct for cls and declares every
// method header (spec.md §4.5 "Class lowering").
func (e *Emitter) declareClass(cls *ast.Node) error {
	var fields []types.Field
	for _, m := range cls.Children {
		if m.Kind != ast.FIELD {
			continue
		}
		var init *ast.Node
		if len(m.Children) > 0 {
			init = m.Children[0]
		}
		fields = append(fields, types.Field{Name: m.Name, Type: m.Type, Init: init})
	}
	class, err := e.types.DeclareClass(cls.Name, fields)
	if err != nil {
		return err
	}

	recvType := llvm.PointerType(class.Struct, 0)
	for _, m := range cls.Children {
		if m.Kind != ast.METHOD {
			continue
		}
		ret, err := resolveIRType(e.types, m.Type)
		if err != nil {
			return fmt.Errorf("method %s.%s return type: %w", cls.Name, m.Name, err)
		}
		params := make([]llvm.Type, len(m.Params)+1)
		params[0] = recvType
		for i, p := range m.Params {
			t, err := resolveIRType(e.types, p.Type)
			if err != nil {
				return fmt.Errorf("method %s.%s parameter %q: %w", cls.Name, m.Name, p.Name, err)
			}
			params[i+1] = t
		}
		mangled := cls.Name + "_" + m.Name
		v := e.mod.NamedFunction(mangled)
		if v.IsNil() {
			v = llvm.AddFunction(e.mod, mangled, llvm.FunctionType(ret, params, false))
		}
		e.methods[mangled] = v
	}
	return nil
}

// lowerClassBody lowers every method body of cls, handling `_init`'s
// positional-init default-copy semantics (spec.md §4.5 "Class lowering",
// §9 Open Question: the default copy always runs before any user
// statements, even when `_init` has a body).
func (e *Emitter) lowerClassBody(cls *ast.Node) error {
	class, _ := e.types.Class(cls.Name)
	for _, m := range cls.Children {
		if m.Kind != ast.METHOD {
			continue
		}
		if err := e.lowerMethodBody(class, m); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) lowerMethodBody(class *types.Class, m *ast.Node) error {
	mangled := class.Name + "_" + m.Name
	fnVal := e.methods[mangled]
	entry := e.newBlock("entry")
	e.positionAt(entry)
	e.pushScope()
	defer e.popScope()

	thisSlot := e.builder.CreateAlloca(llvm.PointerType(class.Struct, 0), "this")
	e.builder.CreateStore(fnVal.Param(0), thisSlot)
	e.thisVal = e.builder.CreateLoad(thisSlot, "this")
	e.curClass = class

	for i, p := range m.Params {
		t, _ := resolveIRType(e.types, p.Type)
		slot := e.builder.CreateAlloca(t, p.Name)
		e.builder.CreateStore(fnVal.Param(i+1), slot)
		e.bind(p.Name, slot, p.Type)
	}

	if m.Name == "_init" {
		if err := e.genPositionalInit(class, m); err != nil {
			return err
		}
	}

	e.curRetName = m.Type
	for _, stmt := range m.Children {
		if err := e.genStmt(stmt); err != nil {
			return fmt.Errorf("method %s: %w", mangled, err)
		}
	}
	return e.finishBlock(mangled, m.Type)
}

// genPositionalInit copies the leading constructor parameters into their
// corresponding field slots, then default-initializes any remaining
// fields from their declared initializer expression (spec.md §4.5 "Class
// lowering": "the default positional-init behavior").
func (e *Emitter) genPositionalInit(class *types.Class, init *ast.Node) error {
	k := len(init.Params)
	if k > len(class.Fields) {
		k = len(class.Fields)
	}
	for i := 0; i < k; i++ {
		b, ok := e.lookup(init.Params[i].Name)
		if !ok {
			return diag.Errorf(diag.ErrResolve, "_init parameter %q not bound", init.Params[i].Name)
		}
		val := e.builder.CreateLoad(b.Ptr, "")
		gep := e.builder.CreateStructGEP(e.thisVal, i, "")
		e.builder.CreateStore(val, gep)
	}
	for i := k; i < len(class.Fields); i++ {
		f := class.Fields[i]
		gep := e.builder.CreateStructGEP(e.thisVal, i, "")
		if f.Init != nil {
			val, _, err := e.genExpr(f.Init)
			if err != nil {
				return err
			}
			e.builder.CreateStore(val, gep)
		} else {
			t, err := e.types.IRType(f.Type)
			if err != nil {
				return err
			}
			e.builder.CreateStore(llvm.ConstNull(t), gep)
		}
	}
	return nil
}

// genObjectCreation allocates an instance of className and either invokes
// its `_init` or, absent one, evaluates each field's default initializer
// directly (spec.md §4.5 "object_creation").
func (e *Emitter) genObjectCreation(className string, argsNode *ast.Node) (llvm.Value, string, error) {
	class, ok := e.types.Class(className)
	if !ok {
		return llvm.Value{}, "", diag.Errorf(diag.ErrResolve, "unknown class %q", className)
	}
	instance := e.builder.CreateAlloca(class.Struct, className)

	if ctor, ok := e.methods[className+"_"+"_init"]; ok {
		args := make([]llvm.Value, len(argsNode.Children)+1)
		args[0] = instance
		for i, a := range argsNode.Children {
			v, _, err := e.genExpr(a)
			if err != nil {
				return llvm.Value{}, "", err
			}
			args[i+1] = v
		}
		e.builder.CreateCall(ctor, args, "")
	} else {
		for i, f := range class.Fields {
			gep := e.builder.CreateStructGEP(instance, i, "")
			if f.Init != nil {
				val, _, err := e.genExpr(f.Init)
				if err != nil {
					return llvm.Value{}, "", err
				}
				e.builder.CreateStore(val, gep)
			} else {
				t, err := e.types.IRType(f.Type)
				if err != nil {
					return llvm.Value{}, "", err
				}
				e.builder.CreateStore(llvm.ConstNull(t), gep)
			}
		}
	}
	return instance, "any:" + className, nil
}
