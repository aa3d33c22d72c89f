// Command bionicdl is a small CLI demo around the bionic loader: it
// opens a guest shared object, runs its constructors, optionally looks
// up a symbol, then tears it back down. Flag/subcommand dispatch
// follows the teacher's cli.go style (flag.NewFlagSet per subcommand,
// switch on os.Args[1]).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/binarycraft007/bionic-translation"
)

const versionString = "bionicdl 0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "open":
		runOpen(os.Args[2:])
	case "version":
		fmt.Println(versionString)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "bionicdl: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bionicdl open [-symbol name] <path-to-guest.so>")
	fmt.Fprintln(os.Stderr, "       bionicdl version")
}

func runOpen(args []string) {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	symbol := fs.String("symbol", "", "look up this symbol after linking and print its address")
	fs.Parse(args)

	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	ctx, err := bionic.NewContext()
	if err != nil {
		fatalf("initializing loader context: %v", err)
	}

	h, err := ctx.Open(path, 0)
	if err != nil {
		fatalf("opening %s: %v", path, err)
	}
	fmt.Printf("linked %s\n", path)

	if *symbol != "" {
		addr, err := ctx.Lookup(h, *symbol)
		if err != nil {
			fatalf("looking up %s: %v", *symbol, err)
		}
		fmt.Printf("%s = %#x\n", *symbol, addr)
	}

	if err := ctx.Close(h); err != nil {
		fatalf("closing %s: %v", path, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bionicdl: "+format+"\n", args...)
	os.Exit(1)
}
