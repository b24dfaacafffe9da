// Command devasm renders a program image back to readable source text.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Urethramancer/vvm/disassembler"
	"github.com/Urethramancer/vvm/vm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "devasm <program>",
		Short:         "Disassemble a VM program image to stdout",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassemble(args[0])
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

func disassemble(inputFile string) error {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading program file: %w", err)
	}

	prog, err := vm.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", inputFile, err)
	}

	fmt.Print(disassembler.Disassemble(prog))
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
	os.Exit(1)
}
