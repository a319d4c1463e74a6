// Package resolve implements the `using` resolver and sibling-module
// linker of spec.md §4.4: for each name a source file imports, it decides
// whether the name is a sibling Artemis source or a native map-described
// module, recursively compiles siblings with a fresh sub-compiler, mangles
// their exported globals, and textually merges the result.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vladisrael/arx-lang/internal/codegen"
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/mapfile"
	"github.com/vladisrael/arx-lang/internal/parser"
	"github.com/vladisrael/arx-lang/internal/types"
	"tinygo.org/x/go-llvm"
)

// Result is the outcome of resolving and lowering one module (root or
// sibling).
type Result struct {
	IR      string                    // this module's IR, merged with every sibling it pulled in
	Sigs    map[string]codegen.FuncSig // original (unmangled) names of this module's own top-level functions
	ExternC map[string]bool           // the transitive set of native modules loaded while compiling this module and its siblings
}

var (
	definedFuncRe = regexp.MustCompile(`(?m)^define\s+\S.*\s@([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	definedGlobRe = regexp.MustCompile(`(?m)^@([A-Za-z_][A-Za-z0-9_.]*)\s*=\s*(?:private\s+|internal\s+)?(?:unnamed_addr\s+)?(?:constant|global)\b`)
	declareRe     = regexp.MustCompile(`(?m)^declare\s.*$`)
	moduleIDRe    = regexp.MustCompile(`(?m)^(?:; ModuleID.*|source_filename\s*=.*|target triple\s*=.*|target datalayout\s*=.*)$\n?`)
)

// Compile resolves and lowers the root source at path, returning the
// final, verification-ready IR text (spec.md §4.6).
func Compile(ctx llvm.Context, path string, mapSearchPaths []string) (string, error) {
	res, err := compileOne(ctx, path, mapSearchPaths, true)
	if err != nil {
		return "", err
	}
	return res.IR, nil
}

// compileOne recursively resolves and lowers one module. A `using` cycle
// recurses indefinitely rather than being detected (spec.md §5, §9 Open
// Question: unspecified input, matching the original Python's lack of a
// cycle guard).
func compileOne(ctx llvm.Context, path string, mapSearchPaths []string, isRoot bool) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Errorf(diag.ErrIO, "reading source %q: %s", path, err)
	}

	warn := &diag.Collector{}
	file, err := parser.Parse(string(src), warn)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	var externNames []string
	siblingPaths := map[string]string{}
	for _, name := range file.Usings {
		sp := filepath.Join(dir, name+".arx")
		if _, statErr := os.Stat(sp); statErr == nil {
			siblingPaths[name] = sp
		} else {
			externNames = append(externNames, name)
		}
	}

	allMaps, err := mapfile.Load(mapSearchPaths)
	if err != nil {
		return nil, err
	}

	externs := map[string]*mapfile.Module{}
	externC := map[string]bool{}
	if core, ok := allMaps["core"]; ok {
		externs["core"] = core
		externC["core"] = true
	}
	for _, name := range externNames {
		m, ok := allMaps[name]
		if !ok {
			return nil, diag.Errorf(diag.ErrResolve, "using %q: no sibling module %s.arx and no map file found", name, name)
		}
		externs[name] = m
		externC[name] = true
	}

	siblingSigs := map[string]map[string]codegen.FuncSig{}
	type childText struct {
		name string
		res  *Result
	}
	var children []childText
	for name, sp := range siblingPaths {
		sub, err := compileOne(ctx, sp, mapSearchPaths, false)
		if err != nil {
			return nil, fmt.Errorf("resolving sibling %q: %w", name, err)
		}
		for k := range sub.ExternC {
			externC[k] = true
		}
		siblingSigs[name] = sub.Sigs
		children = append(children, childText{name: name, res: sub})
	}

	reg := types.New(ctx)
	moduleName := strings.TrimSuffix(filepath.Base(path), ".arx")
	em := codegen.New(ctx, moduleName, reg, externs, siblingSigs)
	if err := em.Emit(file, isRoot); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ownIR := em.Module().String()
	var namespace map[string]string
	if !isRoot {
		namespace = mangleNamespace(moduleName, ownIR, externC)
		ownIR = rewriteGlobals(ownIR, namespace)
	}

	merged := ownIR
	for _, c := range children {
		merged = mergeSibling(merged, c.res.IR)
	}

	return &Result{
		IR:      merged,
		Sigs:    em.FuncSigs(file),
		ExternC: externC,
	}, nil
}

// mangleNamespace builds the original->mangled map for every global this
// module defines (functions with a body, and global constants such as
// interned string literals), skipping names that already begin with
// `<cmodule>_` for one of this module's own loaded native modules (spec.md
// §4.4 point 1).
func mangleNamespace(moduleName, ir string, externC map[string]bool) map[string]string {
	ns := map[string]string{}
	for _, m := range definedFuncRe.FindAllStringSubmatch(ir, -1) {
		addMangled(ns, moduleName, m[1], externC)
	}
	for _, m := range definedGlobRe.FindAllStringSubmatch(ir, -1) {
		addMangled(ns, moduleName, m[1], externC)
	}
	return ns
}

func addMangled(ns map[string]string, moduleName, name string, externC map[string]bool) {
	if _, ok := ns[name]; ok {
		return
	}
	for cmodule := range externC {
		if strings.HasPrefix(name, cmodule+"_") {
			return // already an extern-C reference; must remain un-renamed.
		}
	}
	ns[name] = moduleName + "_" + name
}

// rewriteGlobals textually rewrites every `@<original>` occurrence to
// `@<mangled>` per the namespace map (spec.md §4.4, §9 "Module merging via
// text").
func rewriteGlobals(ir string, ns map[string]string) string {
	if len(ns) == 0 {
		return ir
	}
	var sb strings.Builder
	sb.Grow(len(ir))
	i := 0
	for i < len(ir) {
		if ir[i] == '@' {
			j := i + 1
			for j < len(ir) && isGlobalNameByte(ir[j]) {
				j++
			}
			name := ir[i+1 : j]
			if mangled, ok := ns[name]; ok {
				sb.WriteByte('@')
				sb.WriteString(mangled)
				i = j
				continue
			}
		}
		sb.WriteByte(ir[i])
		i++
	}
	return sb.String()
}

func isGlobalNameByte(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// mergeSibling concatenates a sibling's (already-mangled) IR into the
// accumulated text, dropping its ModuleID/target triple/target datalayout
// lines and any `declare` already present in the accumulated text (spec.md
// §4.4, §8 property 7).
func mergeSibling(acc, siblingIR string) string {
	siblingIR = moduleIDRe.ReplaceAllString(siblingIR, "")
	existingDeclares := map[string]bool{}
	for _, d := range declareRe.FindAllString(acc, -1) {
		existingDeclares[d] = true
	}
	siblingIR = declareRe.ReplaceAllStringFunc(siblingIR, func(line string) string {
		if existingDeclares[line] {
			return ""
		}
		existingDeclares[line] = true
		return line
	})
	return acc + "\n" + siblingIR
}
