package vm

import (
	"fmt"

	"github.com/Urethramancer/vvm/word"
)

// push appends v to the stack, trapping STACK_OVERFLOW at capacity.
func (s *State) push(v word.Word) error {
	if s.stackSize >= StackCapacity {
		return trap(StackOverflow)
	}
	s.stack[s.stackSize] = v
	s.stackSize++
	return nil
}

// pop removes and returns the top of the stack, trapping
// STACK_UNDERFLOW on an empty stack.
func (s *State) pop() (word.Word, error) {
	if s.stackSize < 1 {
		return 0, trap(StackUnderflow)
	}
	s.stackSize--
	return s.stack[s.stackSize], nil
}

// top returns the top of the stack without removing it.
func (s *State) top() (word.Word, error) {
	if s.stackSize < 1 {
		return 0, trap(StackUnderflow)
	}
	return s.stack[s.stackSize-1], nil
}

// Step executes exactly one instruction and reports the outcome: nil for
// OK, or a *Trap. Stepping a halted machine is a caller error the spec
// leaves undefined; callers should check Halt first (Run already does).
func (s *State) Step() error {
	if s.IP < 0 || s.IP >= len(s.program) {
		return trap(IllegalInstructionAccess)
	}

	inst := s.program[s.IP]
	if !inst.Op.Valid() {
		return trap(IllegalInstruction)
	}

	switch inst.Op {
	case NOP:
		s.IP++

	case PUSH:
		if err := s.push(inst.Operand); err != nil {
			return err
		}
		s.IP++

	case DUPREL:
		n := inst.Operand.I64()
		if n < 0 {
			return trap(IllegalOperand)
		}
		if int(n) >= s.stackSize {
			return trap(StackUnderflow)
		}
		if s.stackSize >= StackCapacity {
			return trap(StackOverflow)
		}
		v := s.stack[s.stackSize-1-int(n)]
		s.stack[s.stackSize] = v
		s.stackSize++
		s.IP++

	case SWAP:
		n := inst.Operand.I64()
		if n < 0 {
			return trap(IllegalOperand)
		}
		if int(n) >= s.stackSize {
			return trap(StackUnderflow)
		}
		top := s.stackSize - 1
		other := s.stackSize - 1 - int(n)
		s.stack[top], s.stack[other] = s.stack[other], s.stack[top]
		s.IP++

	case ADDI, SUBI, MULI, DIVI:
		if err := s.binaryIntOp(inst.Op); err != nil {
			return err
		}
		s.IP++

	case ADDF, SUBF, MULF, DIVF:
		if err := s.binaryFloatOp(inst.Op); err != nil {
			return err
		}
		s.IP++

	case JMP:
		s.IP = int(inst.Operand.U64())

	case JMPNZ:
		v, err := s.pop()
		if err != nil {
			return err
		}
		if v.U64() != 0 {
			s.IP = int(inst.Operand.U64())
		} else {
			s.IP++
		}

	case EQ:
		if s.stackSize < 2 {
			return trap(StackUnderflow)
		}
		a := s.stack[s.stackSize-2]
		b := s.stack[s.stackSize-1]
		result := word.FromU64(0)
		if a.U64() == b.U64() {
			result = word.FromU64(1)
		}
		s.stack[s.stackSize-2] = result
		s.stackSize--
		s.IP++

	case NOT:
		if s.stackSize < 1 {
			return trap(StackUnderflow)
		}
		v := s.stack[s.stackSize-1]
		result := word.FromU64(0)
		if v.U64() == 0 {
			result = word.FromU64(1)
		}
		s.stack[s.stackSize-1] = result
		s.IP++

	case GEQ:
		if s.stackSize < 2 {
			return trap(StackUnderflow)
		}
		top := s.stack[s.stackSize-1].F64()
		below := s.stack[s.stackSize-2].F64()
		result := word.FromU64(0)
		if top >= below {
			result = word.FromU64(1)
		}
		s.stack[s.stackSize-2] = result
		s.stackSize--
		s.IP++

	case HALT:
		s.Halt = true

	case PRINTDEBUG:
		s.dumpStack()
		s.IP++

	default:
		return trap(IllegalInstruction)
	}

	return nil
}

// binaryIntOp implements ADDI/SUBI/MULI/DIVI: pop 2, push 1, result
// written into the lower slot. All four opcodes reinterpret their
// operands through the u64 view, so signed overflow wraps two's
// complement per spec §9's open question.
func (s *State) binaryIntOp(op Opcode) error {
	if s.stackSize < 2 {
		return trap(StackUnderflow)
	}
	x := s.stack[s.stackSize-2].U64()
	y := s.stack[s.stackSize-1].U64()

	var result uint64
	switch op {
	case ADDI:
		result = x + y
	case SUBI:
		result = x - y
	case MULI:
		result = x * y
	case DIVI:
		if y == 0 {
			return trap(DivByZero)
		}
		result = x / y
	}
	s.stack[s.stackSize-2] = word.FromU64(result)
	s.stackSize--
	return nil
}

// binaryFloatOp implements ADDF/SUBF/MULF/DIVF on the f64 view. DIVF
// never traps; it follows IEEE-754 (±Inf, NaN).
func (s *State) binaryFloatOp(op Opcode) error {
	if s.stackSize < 2 {
		return trap(StackUnderflow)
	}
	x := s.stack[s.stackSize-2].F64()
	y := s.stack[s.stackSize-1].F64()

	var result float64
	switch op {
	case ADDF:
		result = x + y
	case SUBF:
		result = x - y
	case MULF:
		result = x * y
	case DIVF:
		result = x / y
	}
	s.stack[s.stackSize-2] = word.FromF64(result)
	s.stackSize--
	return nil
}

// dumpStack writes an implementation-defined dump of the current stack,
// following the format of the reference vm_dump_stack: a "Stack:"
// header, one signed decimal value per line, or "[Empty]" when there is
// nothing to show. Unlike the instruction's ancestor in the original C,
// this does not consume the stack.
func (s *State) dumpStack() {
	if s.Debug == nil {
		return
	}
	fmt.Fprintln(s.Debug, "Stack:")
	if s.stackSize == 0 {
		fmt.Fprintln(s.Debug, "  [Empty]")
		return
	}
	for i := 0; i < s.stackSize; i++ {
		fmt.Fprintf(s.Debug, "  %d\n", s.stack[i].I64())
	}
}

// Run repeatedly steps the machine while it hasn't halted and the step
// budget hasn't been exhausted. limit < 0 means unbounded; limit == 0
// returns immediately without executing anything. Run returns the first
// non-nil trap, or nil once the machine halts or the budget runs out.
func (s *State) Run(limit int64) error {
	if limit == 0 {
		return nil
	}
	for steps := int64(0); limit < 0 || steps < limit; steps++ {
		if s.Halt {
			return nil
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}
