// batchtool is a CLI utility that submits glTF models into a headless batch
// registry and reports the resulting draw layout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "commands", "cmds":
		cmdCommands(args)
	case "bones":
		cmdBones(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`batchtool - batch registry inspection utility

Usage:
  batchtool <command> [options] <file.gltf>...

Commands:
  info <file>...        Show scene contents and registry totals
  commands <file>...    List indirect draw commands and instance ranges
  bones <file>          List bones and animations of one model

Options:
  -items N              Instances submitted per model (default 1)
  -split N              Split meshes above N vertices (0 = never)

Examples:
  batchtool info -items 4 fox.glb
  batchtool commands -split 65535 city.gltf tree.glb
  batchtool bones fox.glb`)
}

func submitFlags(name string, args []string) *Options {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	opts := &Options{}
	fs.IntVar(&opts.Items, "items", 1, "Instances submitted per model")
	fs.IntVar(&opts.MaxVertices, "split", 0, "Split meshes above N vertices (0 = never)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: batchtool %s [options] <file.gltf>...\n", name)
		os.Exit(1)
	}
	opts.Paths = fs.Args()
	return opts
}

func cmdInfo(args []string) {
	opts := submitFlags("info", args)
	run(opts, WriteInfo)
}

func cmdCommands(args []string) {
	opts := submitFlags("commands", args)
	run(opts, WriteCommands)
}

func cmdBones(args []string) {
	opts := submitFlags("bones", args)
	run(opts, WriteBones)
}

func run(opts *Options, write func(*Report, io.Writer) error) {
	r, err := Submit(*opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := write(r, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
