// Package assembler implements the two-pass translator from the VM's
// line-oriented source language into a vm.Program: a first pass that
// emits instructions and defers unresolved label operands, and a second
// pass that patches them once every label has been seen.
package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Urethramancer/vvm/vm"
	"github.com/Urethramancer/vvm/word"
)

// LabelCapacity and DeferredCapacity mirror the reference label table
// and unresolved-jump list capacities.
const (
	LabelCapacity    = 1024
	DeferredCapacity = 1024
)

// deferredOperand records a forward (or otherwise unresolved at
// emission time) label reference: the program index whose operand needs
// patching, and the label name it refers to.
type deferredOperand struct {
	instrIndex int
	label      string
}

// Assembler holds the state of one translation: the label table being
// built and the list of operands still waiting on a label.
type Assembler struct {
	labels   map[string]uint32
	deferred []deferredOperand
	program  []vm.Instruction
}

// New returns an empty Assembler ready to translate one source buffer.
func New() *Assembler {
	return &Assembler{labels: make(map[string]uint32)}
}

// Assemble translates src into a program. On any fatal error (unknown
// mnemonic, unparsable literal, undefined label, capacity exceeded) it
// returns a non-nil error and no partial program.
func Assemble(src string) ([]vm.Instruction, error) {
	return New().assemble(src)
}

func (a *Assembler) assemble(src string) ([]vm.Instruction, error) {
	for lineNo, raw := range strings.Split(src, "\n") {
		if err := a.translateLine(raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
	}
	if err := a.resolveDeferred(); err != nil {
		return nil, err
	}
	return a.program, nil
}

// translateLine implements the per-line lexical and emission rules: trim,
// strip full-line and trailing comments, register a leading label, look
// up the mnemonic, and emit its instruction.
func (a *Assembler) translateLine(raw string) error {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	head, rest := splitHeadRest(line)
	if strings.HasSuffix(head, ":") {
		name := head[:len(head)-1]
		if name == "" {
			return fmt.Errorf("empty label name")
		}
		if _, exists := a.labels[name]; exists {
			return fmt.Errorf("duplicate label %q", name)
		}
		if len(a.labels) >= LabelCapacity {
			return fmt.Errorf("label table capacity (%d) exceeded", LabelCapacity)
		}
		a.labels[name] = uint32(len(a.program))
		head, rest = splitHeadRest(rest)
	}

	if head == "" {
		return nil
	}

	operandText := rest
	if i := strings.IndexByte(operandText, '#'); i >= 0 {
		operandText = operandText[:i]
	}
	operandText = strings.TrimSpace(operandText)

	op, ok := vm.MnemonicToOpcode(head)
	if !ok {
		return fmt.Errorf("Unknown Instruction %q", head)
	}

	inst, deferredLabel, err := a.buildInstruction(op, operandText)
	if err != nil {
		return err
	}
	if len(a.program) >= vm.ProgramCapacity {
		return fmt.Errorf("program capacity (%d) exceeded", vm.ProgramCapacity)
	}

	idx := len(a.program)
	a.program = append(a.program, inst)

	if deferredLabel != "" {
		if len(a.deferred) >= DeferredCapacity {
			return fmt.Errorf("deferred operand capacity (%d) exceeded", DeferredCapacity)
		}
		a.deferred = append(a.deferred, deferredOperand{instrIndex: idx, label: deferredLabel})
	}

	return nil
}

// buildInstruction parses operandText according to op's operand kind. If
// op is a jump whose operand is a symbolic label rather than a literal
// address, it returns a non-empty deferredLabel and a zero placeholder
// operand for pass 2 to patch.
func (a *Assembler) buildInstruction(op vm.Opcode, operandText string) (vm.Instruction, string, error) {
	if !op.HasOperand() {
		return vm.Instruction{Op: op}, "", nil
	}

	switch op {
	case vm.PUSH:
		w, err := parsePushLiteral(operandText)
		if err != nil {
			return vm.Instruction{}, "", err
		}
		return vm.Instruction{Op: op, Operand: w}, "", nil

	case vm.DUPREL, vm.SWAP:
		n, err := strconv.ParseInt(operandText, 10, 64)
		if err != nil {
			return vm.Instruction{}, "", fmt.Errorf("invalid operand %q for %s: %w", operandText, op, err)
		}
		return vm.Instruction{Op: op, Operand: word.FromI64(n)}, "", nil

	case vm.JMP, vm.JMPNZ:
		if operandText == "" {
			return vm.Instruction{}, "", fmt.Errorf("%s requires an operand", op)
		}
		if isDigit(operandText[0]) {
			addr, err := strconv.ParseUint(operandText, 10, 64)
			if err != nil {
				return vm.Instruction{}, "", fmt.Errorf("invalid address %q for %s: %w", operandText, op, err)
			}
			return vm.Instruction{Op: op, Operand: word.FromU64(addr)}, "", nil
		}
		return vm.Instruction{Op: op, Operand: 0}, operandText, nil

	default:
		return vm.Instruction{}, "", fmt.Errorf("internal error: %s declares an operand but has no parser", op)
	}
}

// resolveDeferred is pass 2: patch every deferred jump operand now that
// the full label table is known.
func (a *Assembler) resolveDeferred() error {
	for _, d := range a.deferred {
		addr, ok := a.labels[d.label]
		if !ok {
			return fmt.Errorf("label does not exist: %q", d.label)
		}
		a.program[d.instrIndex].Operand = word.FromU64(uint64(addr))
	}
	return nil
}

// parsePushLiteral tries an unsigned base-10 integer first; on
// full-consumption failure it tries a double.
func parsePushLiteral(text string) (word.Word, error) {
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return word.FromU64(u), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return word.FromF64(f), nil
	}
	return 0, fmt.Errorf("invalid push literal %q", text)
}

// splitHeadRest splits s on its first run of horizontal whitespace.
func splitHeadRest(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i+1:], " \t")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
