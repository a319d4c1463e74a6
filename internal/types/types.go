// Package types provides the canonical mapping between Artemis surface
// type names and LLVM IR types (spec.md §2.3, §4.3), grounded on the
// teacher's genType (src/ir/llvm/transform.go), generalized from VSL's
// int/float-only model to Artemis's scalars, classes, and lists. Scalar
// and pointer types are built with the teacher's package-level
// llvm.IntNType()/llvm.PointerType() calls; only identified struct types
// (List, class records) are scoped to a Context, so that each recursively
// compiled sibling module gets disjoint struct namespaces (spec.md §9
// "Global state").
package types

import (
	"fmt"

	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
	"tinygo.org/x/go-llvm"
)

// Registry maps Artemis class names to their identified LLVM struct type
// and field layout (spec.md §3 "Class record"), and provides the List
// struct type shared by every list value.
type Registry struct {
	ctx     llvm.Context
	classes map[string]*Class
	listTyp llvm.Type
}

// Field describes one declared field of a class, in declaration order.
type Field struct {
	Name string
	Type string    // declared Artemis type name
	Init *ast.Node // optional default-initializer expression, or nil
}

// Class is the struct-type descriptor and field layout for one Artemis
// class (spec.md §3 "Class record").
type Class struct {
	Name   string
	Struct llvm.Type // identified struct type; class values are Struct*
	Fields []Field
}

// New creates a Registry bound to ctx. The opaque List struct
// `{ i8*, i32, i32, i64, i1 }` is created immediately (spec.md §3, §4.5,
// §9 "opaque list ABI").
func New(ctx llvm.Context) *Registry {
	r := &Registry{ctx: ctx, classes: make(map[string]*Class)}
	r.listTyp = ctx.StructCreateNamed("List")
	r.listTyp.StructSetBody([]llvm.Type{
		llvm.PointerType(llvm.Int8Type(), 0), // byte*
		llvm.Int32Type(),                     // length
		llvm.Int32Type(),                     // element_size
		llvm.Int64Type(),                     // capacity
		llvm.Int1Type(),                       // element-is-pointer
	}, false)
	return r
}

// ListType returns the identified List struct type.
func (r *Registry) ListType() llvm.Type { return r.listTyp }

// ListPtrType returns List*, the IR type of every list-typed value.
func (r *Registry) ListPtrType() llvm.Type { return llvm.PointerType(r.listTyp, 0) }

// DeclareClass registers a new class struct with its field layout
// (spec.md §4.5 "Class lowering": "create the identified struct with
// field IR types in declared order").
func (r *Registry) DeclareClass(name string, fields []Field) (*Class, error) {
	if _, ok := r.classes[name]; ok {
		return nil, diag.Errorf(diag.ErrResolve, "duplicate class %q", name)
	}
	st := r.ctx.StructCreateNamed(name)
	body := make([]llvm.Type, len(fields))
	for i, f := range fields {
		t, err := r.IRType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("class %q field %q: %w", name, f.Name, err)
		}
		body[i] = t
	}
	st.StructSetBody(body, false)
	c := &Class{Name: name, Struct: st, Fields: fields}
	r.classes[name] = c
	return c, nil
}

// Class looks up a previously declared class by name.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// FieldIndex returns the stable struct-GEP index of field name within
// class c (spec.md invariant: "field index is stable across all
// accesses").
func (c *Class) FieldIndex(name string) (int, bool) {
	for i, f := range c.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IRType maps a surface type name to its LLVM IR type (spec.md §4.5 "Type
// mapping"). `string` and `str` are fixed as synonyms (spec.md §9 Open
// Question). Compound forms (`list:<elem>`, `any:<Class>`) are split by
// the caller (codegen.resolveIRType); this function handles scalar, void,
// and class names plus the bare "list" case.
func (r *Registry) IRType(name string) (llvm.Type, error) {
	switch name {
	case "int":
		return llvm.Int32Type(), nil
	case "float":
		return llvm.FloatType(), nil
	case "bool":
		return llvm.Int1Type(), nil
	case "string", "str":
		return llvm.PointerType(llvm.Int8Type(), 0), nil
	case "void":
		return llvm.VoidType(), nil
	case "list":
		return r.ListPtrType(), nil
	default:
		if c, ok := r.classes[name]; ok {
			return llvm.PointerType(c.Struct, 0), nil
		}
		return llvm.Type{}, diag.Errorf(diag.ErrType, "unknown type %q", name)
	}
}

// IsListReturn reports whether a return-type name lowers to List* (spec.md
// §6: "names beginning with list... lower to List*").
func IsListReturn(name string) bool {
	return len(name) >= 4 && name[:4] == "list"
}

// CanonicalArgName returns the canonical overload-table name for an LLVM
// argument type, used by the map-file loader's argument-tuple matching
// (spec.md §4.5 bullet 2, §8 property 5).
func CanonicalArgName(t llvm.Type) string {
	switch t.TypeKind() {
	case llvm.IntegerTypeKind:
		if t.IntTypeWidth() == 1 {
			return "bool"
		}
		return "int"
	case llvm.FloatTypeKind:
		return "float"
	case llvm.PointerTypeKind:
		return "str"
	default:
		return "void"
	}
}
