package mapfile

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleMap = `
[meta]
name = core

[functions]
print:str = arx_print > void
print:int = arx_print_int > void
add:int,int = arx_add > int
`

func writeMapFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %q: %s", path, err)
	}
	return path
}

func TestLoadParsesMapFile(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "core.map", sampleMap)

	mods, err := Load([]string{dir})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	core, ok := mods["core"]
	if !ok {
		t.Fatalf("Load did not return a %q module", "core")
	}
	if len(core.Overloads["print"]) != 2 {
		t.Fatalf("print overloads = %d, want 2", len(core.Overloads["print"]))
	}
	if len(core.Overloads["add"]) != 1 {
		t.Fatalf("add overloads = %d, want 1", len(core.Overloads["add"]))
	}
}

func TestMatchOverloadExactArgsOnly(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "core.map", sampleMap)
	mods, err := Load([]string{dir})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	core := mods["core"]

	ov, ok := core.MatchOverload("print", []string{"str"})
	if !ok || ov.Symbol != "arx_print" {
		t.Fatalf("MatchOverload(print, [str]) = %+v, %v", ov, ok)
	}
	ov, ok = core.MatchOverload("print", []string{"int"})
	if !ok || ov.Symbol != "arx_print_int" {
		t.Fatalf("MatchOverload(print, [int]) = %+v, %v", ov, ok)
	}
	if _, ok := core.MatchOverload("print", []string{"bool"}); ok {
		t.Fatalf("MatchOverload(print, [bool]) should not match (no implicit coercion)")
	}
	if _, ok := core.MatchOverload("add", []string{"int"}); ok {
		t.Fatalf("MatchOverload(add, [int]) should not match a 2-arg overload")
	}
}

func TestLoadMissingMetaNameErrors(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "bad.map", "[functions]\nfoo = bar > void\n")
	if _, err := Load([]string{dir}); err == nil {
		t.Fatalf("expected error for map file with no [meta] name")
	}
}

func TestLoadEntryOutsideSectionErrors(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "bad.map", "name = core\n")
	if _, err := Load([]string{dir}); err == nil {
		t.Fatalf("expected error for entry outside any section")
	}
}

func TestLoadMalformedFunctionEntryErrors(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "bad.map", "[meta]\nname = core\n\n[functions]\nprint:str = arx_print\n")
	if _, err := Load([]string{dir}); err == nil {
		t.Fatalf("expected error for missing '>' in function entry")
	}
}

func TestLoadWritesAndReusesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeMapFile(t, dir, "core.map", sampleMap)

	m1, err := loadOne(path)
	if err != nil {
		t.Fatalf("first loadOne: %s", err)
	}
	if _, err := os.Stat(cachePath(path)); err != nil {
		t.Fatalf("expected cache file to be written: %s", err)
	}

	m2, err := loadOne(path)
	if err != nil {
		t.Fatalf("second loadOne: %s", err)
	}
	if m2.Name != m1.Name || len(m2.Overloads["print"]) != len(m1.Overloads["print"]) {
		t.Fatalf("cached load diverged from original: %+v vs %+v", m2, m1)
	}
}

func TestLoadNoMapFilesReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	mods, err := Load([]string{dir})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(mods) != 0 {
		t.Fatalf("mods = %+v, want empty", mods)
	}
}
