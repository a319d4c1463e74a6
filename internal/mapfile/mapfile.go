// Package mapfile loads declarative .map files that describe externally
// linked native "C" runtime modules (spec.md §4.3, §6). Grounded on the
// original Python compiler's configparser-based loader
// (original_source/arx_lib/compiler.py: `ArtemisCompiler.__init__` globs
// `*.map` per configured search path and reads a `[meta]`/`[functions]`
// ConfigParser document), translated into a small hand-written scanner
// since no pack repo carries a generic INI-parsing dependency and the
// value grammar (`sym > type`) is not itself standard INI (see DESIGN.md).
package mapfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vladisrael/arx-lang/internal/diag"
	"gopkg.in/yaml.v3"
)

// Overload is one argument-signature entry of an extern function
// (spec.md §3 "Extern function table").
type Overload struct {
	ArgTypes []string
	Symbol   string
	RetType  string
}

// Module is one loaded .map file's module name and overload table.
type Module struct {
	Name      string
	Overloads map[string][]Overload // artemis function name -> overloads
}

// MatchOverload finds the overload of fn whose argument-type tuple equals
// argTypes exactly (spec.md §4.3: "Argument-type tuples must match
// exactly at call sites (no implicit coercion)").
func (m *Module) MatchOverload(fn string, argTypes []string) (Overload, bool) {
	for _, ov := range m.Overloads[fn] {
		if sameTypes(ov.ArgTypes, argTypes) {
			return ov, true
		}
	}
	return Overload{}, false
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cacheEntry is the on-disk shape of the YAML memoization cache described
// in SPEC_FULL.md's DOMAIN STACK section: parsed module contents keyed by
// the source .map file's modification time, so repeated builds across
// sibling-module recursion (spec.md §4.4) skip re-parsing an unchanged
// map file. The cache is purely an optimization: a missing or stale entry
// always falls back to re-parsing the .map file itself.
type cacheEntry struct {
	ModTime   int64               `yaml:"mod_time"`
	Name      string              `yaml:"name"`
	Overloads map[string][]cachedOverload `yaml:"overloads"`
}

type cachedOverload struct {
	ArgTypes []string `yaml:"args"`
	Symbol   string   `yaml:"symbol"`
	RetType  string   `yaml:"ret"`
}

// Load parses every .map file under each of searchPaths and returns the
// set of modules found, keyed by module name (spec.md §4.3: "For each map
// file under every configured search path, the loader parses the file").
// Loading itself is unconditional; the caller (internal/resolve) decides
// which of the returned modules to actually register, per spec.md §4.3's
// "only if the declared module name is core or appears in the current
// using set".
func Load(searchPaths []string) (map[string]*Module, error) {
	out := make(map[string]*Module)
	for _, dir := range searchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, "*.map"))
		if err != nil {
			return nil, diag.Errorf(diag.ErrIO, "globbing map files in %q: %s", dir, err)
		}
		for _, path := range matches {
			m, err := loadOne(path)
			if err != nil {
				return nil, err
			}
			out[m.Name] = m
		}
	}
	return out, nil
}

func loadOne(path string) (*Module, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, diag.Errorf(diag.ErrIO, "reading map file %q: %s", path, err)
	}
	if m := readCache(path, info.ModTime()); m != nil {
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, diag.Errorf(diag.ErrIO, "reading map file %q: %s", path, err)
	}
	defer f.Close()

	m, err := parse(f, path)
	if err != nil {
		return nil, err
	}
	writeCache(path, info.ModTime(), m)
	return m, nil
}

// parse reads the INI-like [meta]/[functions] grammar of spec.md §6:
//
//	[meta]
//	name = <module-name>
//
//	[functions]
//	<artemis_fn>:<arg_type>,<arg_type>,... = <native_symbol> > <return_type>
func parse(r *os.File, path string) (*Module, error) {
	m := &Module{Overloads: make(map[string][]Overload)}
	section := ""
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, ";") || strings.HasPrefix(raw, "#") {
			continue
		}
		if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
			section = strings.TrimSpace(raw[1 : len(raw)-1])
			continue
		}
		key, val, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, diag.Errorf(diag.ErrIO, "%s:%d: expected 'key = value', got %q", path, line, raw)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch section {
		case "meta":
			if key == "name" {
				m.Name = val
			}
		case "functions":
			if err := parseFunctionEntry(m, key, val); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
		default:
			return nil, diag.Errorf(diag.ErrIO, "%s:%d: entry outside of a section", path, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, diag.Errorf(diag.ErrIO, "reading map file %q: %s", path, err)
	}
	if m.Name == "" {
		return nil, diag.Errorf(diag.ErrIO, "%s: missing [meta] name", path)
	}
	return m, nil
}

// parseFunctionEntry parses one `<fn>:<args> = <symbol> > <ret>` entry.
func parseFunctionEntry(m *Module, key, val string) error {
	fn, argPart, _ := strings.Cut(key, ":")
	fn = strings.TrimSpace(fn)
	var argTypes []string
	argPart = strings.TrimSpace(argPart)
	if argPart != "" {
		for _, a := range strings.Split(argPart, ",") {
			argTypes = append(argTypes, strings.TrimSpace(a))
		}
	}

	symbol, ret, ok := strings.Cut(val, ">")
	if !ok {
		return fmt.Errorf("expected 'symbol > return_type' in %q", val)
	}
	o := Overload{
		ArgTypes: argTypes,
		Symbol:   strings.TrimSpace(symbol),
		RetType:  strings.TrimSpace(ret),
	}
	m.Overloads[fn] = append(m.Overloads[fn], o)
	return nil
}

func cachePath(path string) string {
	return path + ".lock"
}

func readCache(path string, modTime time.Time) *Module {
	data, err := os.ReadFile(cachePath(path))
	if err != nil {
		return nil
	}
	var entry cacheEntry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if entry.ModTime != modTime.UnixNano() {
		return nil
	}
	m := &Module{Name: entry.Name, Overloads: make(map[string][]Overload, len(entry.Overloads))}
	for fn, ovs := range entry.Overloads {
		for _, o := range ovs {
			m.Overloads[fn] = append(m.Overloads[fn], Overload{ArgTypes: o.ArgTypes, Symbol: o.Symbol, RetType: o.RetType})
		}
	}
	return m
}

func writeCache(path string, modTime time.Time, m *Module) {
	entry := cacheEntry{ModTime: modTime.UnixNano(), Name: m.Name, Overloads: make(map[string][]cachedOverload, len(m.Overloads))}
	for fn, ovs := range m.Overloads {
		for _, o := range ovs {
			entry.Overloads[fn] = append(entry.Overloads[fn], cachedOverload{ArgTypes: o.ArgTypes, Symbol: o.Symbol, RetType: o.RetType})
		}
	}
	data, err := yaml.Marshal(entry)
	if err != nil {
		return
	}
	// Best-effort: a failed cache write never aborts compilation (spec.md
	// §5 blocking-I/O model covers reads only; the cache is advisory).
	_ = os.WriteFile(cachePath(path), data, 0644)
}
