package vm

import (
	"io"
	"os"

	"github.com/Urethramancer/vvm/word"
)

// StackCapacity and ProgramCapacity are the fixed bounds of the VM's
// arrays (spec §3). Neither the stack nor the program ever grows past
// these; exceeding them is a trap (stack) or a fatal assembler error
// (program).
const (
	StackCapacity   = 1024
	ProgramCapacity = 1024
)

// State is the interpreter's execution state: stack, loaded program,
// instruction pointer, and halt flag. The zero value is a valid,
// freshly-reset machine (spec §3: "Initial: all zero, halt=false, ip=0").
type State struct {
	stack     [StackCapacity]word.Word
	stackSize int

	program []Instruction

	// IP is the zero-based index into Program of the next instruction
	// to fetch.
	IP int
	// Halt is set by the HALT opcode. Once true (or once a trap has
	// been returned) the state is terminal.
	Halt bool

	// Debug is where PRINT_DEBUG writes its dump. New sets it to
	// os.Stdout; tests substitute a bytes.Buffer. When nil (as in the
	// zero value), PRINT_DEBUG writes nothing.
	Debug io.Writer
}

// New returns a freshly-initialized State with no program loaded.
func New() *State {
	return &State{Debug: os.Stdout}
}

// Reset reinitializes the state in place: stack cleared, ip zeroed, halt
// cleared. The loaded program is left untouched (spec: "a caller may
// reset the interpreter by reinitializing state").
func (s *State) Reset() {
	s.stackSize = 0
	s.IP = 0
	s.Halt = false
}

// LoadProgram installs prog as the program to execute and resets
// execution state. prog must not exceed ProgramCapacity instructions.
func (s *State) LoadProgram(prog []Instruction) error {
	if len(prog) > ProgramCapacity {
		return &Trap{Kind: IllegalOperand}
	}
	s.program = prog
	s.Reset()
	return nil
}

// Program returns the currently loaded instructions. The returned slice
// must not be mutated; the program is immutable once loaded (spec §3).
func (s *State) Program() []Instruction {
	return s.program
}

// ProgramSize returns the number of loaded instructions.
func (s *State) ProgramSize() int {
	return len(s.program)
}

// StackSize returns the current number of live stack cells.
func (s *State) StackSize() int {
	return s.stackSize
}

// StackAt returns the Word at absolute stack index i (0 = bottom of
// stack, not top). Panics only if i is out of [0, StackCapacity); an
// index in [StackSize(), StackCapacity) returns a stale or zero cell
// rather than failing, so callers (tests, debug dumps) are expected to
// check StackSize().
func (s *State) StackAt(i int) word.Word {
	return s.stack[i]
}
