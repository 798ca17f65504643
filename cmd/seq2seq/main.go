// Package main provides the seq2seq command: train, translate and export
// LSTM encoder-decoder models.
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.1.0-dev"

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"train", "Train a model from a tab-separated parallel corpus", runTrain},
	{"translate", "Translate sentences read from stdin or arguments", runTranslate},
	{"export", "Write checkpoint weights as safetensors", runExport},
	{"config", "Print the default configuration", runConfig},
	{"version", "Show version", runVersion},
}

func main() {
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("seq2seq: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(os.Args[2:]); err != nil {
				log.Fatalf("%s: %v", name, err)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, "seq2seq %s\n\nCommands:\n", version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr, "\nRun 'seq2seq <command> -h' for command flags.")
}

func runVersion([]string) error {
	fmt.Printf("seq2seq %s\n", version)
	return nil
}
