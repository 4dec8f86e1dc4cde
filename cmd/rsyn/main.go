// Tool rsyn is a thin command-line wrapper around the rsyn client: list or
// download from an rsync server reached as a local subprocess, over SSH, or
// by local path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nlsync/rsyn"
	"github.com/nlsync/rsyn/internal/rlog"
)

func main() {
	log.SetFlags(0)

	var (
		recursive = flag.Bool("r", false, "recurse into directories")
		listOnly  = flag.Bool("list-only", false, "list files instead of downloading them")
		verbose   = flag.Int("v", 0, "verbosity level")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] source [destination]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	source := flag.Arg(0)

	addr, err := rsyn.ParseAddress(source)
	if err != nil {
		log.Fatalf("rsyn: %v", err)
	}

	client := rsyn.NewClient(addr,
		rsyn.WithRecursive(*recursive),
		rsyn.WithListOnly(*listOnly),
		rsyn.WithVerbose(*verbose),
		rsyn.WithLogger(rlog.New(os.Stderr)),
	)

	ctx := context.Background()
	if *listOnly || flag.NArg() < 2 {
		list, _, err := client.List(ctx)
		if err != nil {
			log.Fatalf("rsyn: %v", err)
		}
		for _, f := range list {
			fmt.Printf("%12d %s\n", f.FileLen, f.Name)
		}
		return
	}

	dest := flag.Arg(1)
	_, summary, err := client.Download(ctx, dest)
	if err != nil {
		log.Fatalf("rsyn: %v", err)
	}
	fmt.Printf("received %d files, %d bytes\n", summary.FilesReceived, summary.LiteralBytesReceived)
}
