// Package driver orchestrates the `build` verb end to end: resolve, lower,
// merge, verify, emit (spec.md §4.6 "Top-level driver").
package driver

import (
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/resolve"
	"tinygo.org/x/go-llvm"
)

// Compile resolves and lowers the Artemis program rooted at src, returning
// the final, verified LLVM-IR text (spec.md §4.6).
func Compile(src string, mapPaths []string) (string, error) {
	diag.Log.Debug("stage: resolve+lower")
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	ir, err := resolve.Compile(ctx, src, mapPaths)
	if err != nil {
		return "", err
	}

	diag.Log.Debug("stage: merge")
	diag.Log.Debug("stage: verify")
	buf := llvm.NewMemoryBufferFromString(ir)
	mod, err := ctx.ParseIR(buf)
	if err != nil {
		return "", diag.Errorf(diag.ErrFatal, "merged module failed to parse: %s", err)
	}
	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		return "", diag.Errorf(diag.ErrFatal, "merged module failed verification: %s", err)
	}

	diag.Log.Debug("stage: emit")
	return mod.String(), nil
}
