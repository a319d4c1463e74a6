package main

import (
	"fmt"
	"os"

	"github.com/vladisrael/arx-lang/internal/cliopt"
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/driver"
)

// run executes the `build` verb: parse arguments, compile, write output.
func run(opt cliopt.Options) error {
	diag.SetVerbose(opt.Verbose)

	ir, err := driver.Compile(opt.Src, opt.MapPaths)
	if err != nil {
		return err
	}

	if opt.Out == "" {
		_, err = fmt.Println(ir)
		return err
	}
	return os.WriteFile(opt.Out, []byte(ir), 0644)
}

func main() {
	opt, err := cliopt.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}
