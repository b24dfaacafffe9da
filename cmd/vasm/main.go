// Command vasm translates a line-oriented source file into a flat binary
// program image the interpreter can load.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Urethramancer/vvm/assembler"
	"github.com/Urethramancer/vvm/vm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "vasm <source> <output>",
		Short:         "Assemble a source file into a VM program image",
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return assemble(args[0], args[1])
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

func assemble(inputFile, outputFile string) error {
	src, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}

	prog, err := assembler.Assemble(string(src))
	if err != nil {
		return fmt.Errorf("assembling %s: %w", inputFile, err)
	}

	if err := os.WriteFile(outputFile, vm.Encode(prog), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}

	fmt.Printf("assembled %d instructions to %s\n", len(prog), outputFile)
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
	os.Exit(1)
}
