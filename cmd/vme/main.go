// Command vme loads a VM program image and executes it, optionally
// single-stepping under operator control.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Urethramancer/vvm/vm"
)

func main() {
	var inputFile string
	var limit int64
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "vme",
		Short:         "Run a VM program image",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputFile == "" {
				return fmt.Errorf("-i <program> is required")
			}
			return run(inputFile, limit, debug)
		},
	}
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "program image to load")
	rootCmd.Flags().Int64VarP(&limit, "limit", "l", -1, "step budget (negative means unbounded)")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "step-wait on stdin between instructions")

	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

func run(inputFile string, limit int64, debug bool) error {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading program file: %w", err)
	}

	prog, err := vm.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", inputFile, err)
	}

	s := vm.New()
	if err := s.LoadProgram(prog); err != nil {
		return fmt.Errorf("loading program: %w", err)
	}

	if debug {
		return runDebug(s, limit)
	}

	if err := s.Run(limit); err != nil {
		if tr, ok := vm.AsTrap(err); ok {
			return fmt.Errorf("trap at ip=%d: %s", s.IP, tr)
		}
		return err
	}
	return nil
}

// runDebug steps the machine one instruction at a time under operator
// control, accepting n/next and r/run commands on stdin.
func runDebug(s *vm.State, limit int64) error {
	fmt.Print("Commands:\n\tn or next: execute next instruction\n\tr or run: run to completion\n\n")
	printState(s)

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	steps := int64(0)

	for !s.Halt {
		if limit >= 0 && steps >= limit {
			fmt.Println("step budget exhausted")
			return nil
		}

		if waitForInput {
			fmt.Print("-> ")
			line, _ := reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
			switch {
			case line == "r" || line == "run":
				waitForInput = false
				continue
			case line != "n" && line != "next" && line != "":
				fmt.Println("unknown command:", line)
				continue
			}
		}

		if err := s.Step(); err != nil {
			if tr, ok := vm.AsTrap(err); ok {
				return fmt.Errorf("trap at ip=%d: %s", s.IP, tr)
			}
			return err
		}
		steps++

		if waitForInput {
			printState(s)
		}
	}

	return nil
}

func printState(s *vm.State) {
	fmt.Printf("ip=%d halt=%v stack_size=%d\n", s.IP, s.Halt, s.StackSize())
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
	os.Exit(1)
}
