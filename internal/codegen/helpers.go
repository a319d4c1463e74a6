package codegen

import (
	"strings"

	"github.com/vladisrael/arx-lang/internal/diag"
	"tinygo.org/x/go-llvm"
)

// mapFileIRType maps a map-file type name to its LLVM IR type (spec.md
// §6: "int, float, bool, str, string, int*, void, and names beginning
// with list").
func (e *Emitter) mapFileIRType(name string) (llvm.Type, error) {
	switch {
	case name == "int":
		return llvm.Int32Type(), nil
	case name == "float":
		return llvm.FloatType(), nil
	case name == "bool":
		return llvm.Int1Type(), nil
	case name == "str" || name == "string":
		return llvm.PointerType(llvm.Int8Type(), 0), nil
	case name == "int*":
		return llvm.PointerType(llvm.Int32Type(), 0), nil
	case name == "void":
		return llvm.VoidType(), nil
	case strings.HasPrefix(name, "list"):
		return e.types.ListPtrType(), nil
	default:
		return llvm.Type{}, diag.Errorf(diag.ErrType, "unknown map-file type %q", name)
	}
}

// getOrDeclare looks up an already-declared/defined function by name,
// adding a bare declaration if absent (spec.md §6: the emitted module
// "declares malloc, the list helpers... the string helpers", each lazily
// on first use, mirroring the teacher's genPrintf/genAtoi/genAtof).
func (e *Emitter) getOrDeclare(name string, ret llvm.Type, params []llvm.Type, variadic bool) llvm.Value {
	if v, ok := e.helpers[name]; ok {
		return v
	}
	v := e.mod.NamedFunction(name)
	if v.IsNil() {
		v = llvm.AddFunction(e.mod, name, llvm.FunctionType(ret, params, variadic))
	}
	e.helpers[name] = v
	return v
}

func (e *Emitter) getMalloc() (llvm.Value, error) {
	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	return e.getOrDeclare("malloc", i8ptr, []llvm.Type{llvm.Int64Type()}, false), nil
}

func (e *Emitter) getListCreateFrom() (llvm.Value, error) {
	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	listPtr := e.types.ListPtrType()
	params := []llvm.Type{i8ptr, llvm.Int32Type(), llvm.Int32Type(), llvm.Int1Type()}
	return e.getOrDeclare("core_list_create_from", listPtr, params, false), nil
}

func (e *Emitter) getListLen() (llvm.Value, error) {
	listPtr := e.types.ListPtrType()
	return e.getOrDeclare("core_list_len", llvm.Int32Type(), []llvm.Type{listPtr}, false), nil
}

func (e *Emitter) getListGet() (llvm.Value, error) {
	listPtr := e.types.ListPtrType()
	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	params := []llvm.Type{listPtr, llvm.Int32Type()}
	return e.getOrDeclare("core_list_get", i8ptr, params, false), nil
}

func (e *Emitter) getStringEqual() (llvm.Value, error) {
	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	params := []llvm.Type{i8ptr, i8ptr}
	return e.getOrDeclare("core_string_equal", llvm.Int1Type(), params, false), nil
}

func (e *Emitter) getStringConcat() (llvm.Value, error) {
	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	params := []llvm.Type{i8ptr, i8ptr}
	return e.getOrDeclare("core_string_concat", i8ptr, params, false), nil
}

// declareExtern lazily declares an extern-C map-described symbol with the
// signature its overload entry specifies (spec.md §4.5 "call_method" case
// 2).
func (e *Emitter) declareExtern(symbol string, argTypes []string, retTypeName string) (llvm.Value, error) {
	if v, ok := e.helpers[symbol]; ok {
		return v, nil
	}
	ret, err := e.mapFileIRType(retTypeName)
	if err != nil {
		return llvm.Value{}, err
	}
	params := make([]llvm.Type, len(argTypes))
	for i, a := range argTypes {
		t, err := e.mapFileIRType(a)
		if err != nil {
			return llvm.Value{}, err
		}
		params[i] = t
	}
	v := e.getOrDeclare(symbol, ret, params, false)
	return v, nil
}

// genMain synthesizes the C-ABI entry point `int main() { return _exec(); }`
// (spec.md §4.6, §9 Open Question: "main calls _exec with no arguments...
// programs without _exec will fail at link time rather than at compile
// time" — so this declares `i32 @_exec()` unconditionally rather than
// checking whether the user actually defined one).
func (e *Emitter) genMain() {
	execFn := e.mod.NamedFunction("_exec")
	if execFn.IsNil() {
		execFn = llvm.AddFunction(e.mod, "_exec", llvm.FunctionType(llvm.Int32Type(), nil, false))
	}
	mainFn := llvm.AddFunction(e.mod, "main", llvm.FunctionType(llvm.Int32Type(), nil, false))
	entry := llvm.AddBasicBlock(mainFn, "entry")
	e.builder.SetInsertPointAtEnd(entry)
	result := e.builder.CreateCall(execFn, nil, "")
	e.builder.CreateRet(result)
}
