// Package cliopt parses the core's single invoked CLI verb, `build <file>`
// (spec.md §6: "CLI (external collaborator)... Only build invokes the
// core"). Every other verb (version, insight, environment, install, site)
// is the dispatcher's concern, not the core's, and is not parsed here.
package cliopt

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Options holds the parsed arguments of one `build` invocation.
type Options struct {
	Src      string   // path to the root Artemis source file
	Out      string   // output path; "" means stdout
	MapPaths []string // -I search directories for .map files, in order
	Verbose  bool      // -vb: raise the diagnostic logger to debug level
}

const appVersion = "arx compiler 1.0"

// ParseArgs parses os.Args[1:], mirroring the teacher's flat
// switch-on-flag loop (src/util/args.go's ParseArgs) rather than a flag
// package, since positional + repeatable flags don't fit flag.FlagSet
// cleanly.
func ParseArgs() (Options, error) {
	opt := Options{}
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return opt, fmt.Errorf("no source file given")
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-h", "--h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-v", "--v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			opt.Verbose = true
		case "-o":
			if i+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i])
			}
			if strings.HasPrefix(args[i+1], "-") {
				return opt, fmt.Errorf("expected output path, got new flag %s", args[i+1])
			}
			opt.Out = args[i+1]
			i++
		case "-I":
			if i+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i])
			}
			if strings.HasPrefix(args[i+1], "-") {
				return opt, fmt.Errorf("expected map-search path, got new flag %s", args[i+1])
			}
			opt.MapPaths = append(opt.MapPaths, args[i+1])
			i++
		default:
			if strings.HasPrefix(args[i], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i])
			}
			if opt.Src != "" {
				return opt, fmt.Errorf("unexpected extra argument: %s", args[i])
			}
			opt.Src = args[i]
		}
	}
	if opt.Src == "" {
		return opt, fmt.Errorf("no source file given")
	}
	return opt, nil
}

func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "usage: arxc [flags] <file>")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output IR file. Defaults to stdout.")
	_, _ = fmt.Fprintln(w, "-I\tAdds a directory to search for .map files. Repeatable.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: log every compile stage transition.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints compiler version and exits.")
	_ = w.Flush()
}
