package vm

import (
	"bytes"
	"testing"

	"github.com/Urethramancer/vvm/word"
)

func mustLoad(t *testing.T, prog []Instruction) *State {
	t.Helper()
	s := New()
	if err := s.LoadProgram(prog); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	return s
}

func wantTrap(t *testing.T, err error, kind TrapKind) {
	t.Helper()
	tr, ok := AsTrap(err)
	if !ok {
		t.Fatalf("expected trap %s, got %v", kind, err)
	}
	if tr.Kind != kind {
		t.Fatalf("expected trap %s, got %s", kind, tr.Kind)
	}
}

// TestFibonacciPrefix mirrors spec scenario 1: push 0; push 1; rdup 1;
// rdup 1; addi; jmp 2, run with limit 20.
func TestFibonacciPrefix(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromU64(0)},
		{Op: PUSH, Operand: word.FromU64(1)},
		{Op: DUPREL, Operand: word.FromU64(1)},
		{Op: DUPREL, Operand: word.FromU64(1)},
		{Op: ADDI},
		{Op: JMP, Operand: word.FromU64(2)},
	}
	s := mustLoad(t, prog)
	if err := s.Run(20); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if s.IP < 2 || s.IP > 5 {
		t.Errorf("expected ip to settle in {2,3,4,5}, got %d", s.IP)
	}

	// 20 steps covers the 2 setup pushes plus 4 complete loop bodies (4
	// steps each): push 0; push 1; then (rdup 1; rdup 1; addi; jmp 2)x4,
	// with 2 steps of a 5th iteration left over. The first 4 completed
	// iterations guarantee these prefix terms landed on the stack.
	want := []uint64{1, 1, 2, 3, 5}
	if s.StackSize() < len(want)+1 {
		t.Fatalf("expected at least %d stack entries, got %d", len(want)+1, s.StackSize())
	}
	for i, w := range want {
		if got := s.StackAt(i + 1).U64(); got != w {
			t.Errorf("fib[%d]: got %d, want %d", i, got, w)
		}
	}
}

// TestDivisionByZero mirrors spec scenario 2.
func TestDivisionByZero(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromU64(10)},
		{Op: PUSH, Operand: word.FromU64(0)},
		{Op: DIVI},
		{Op: HALT},
	}
	s := mustLoad(t, prog)
	err := s.Run(-1)
	wantTrap(t, err, DivByZero)

	if s.StackSize() != 2 {
		t.Fatalf("expected stack untouched at size 2, got %d", s.StackSize())
	}
	if s.StackAt(0).U64() != 10 || s.StackAt(1).U64() != 0 {
		t.Errorf("expected stack [10, 0], got [%d, %d]", s.StackAt(0).U64(), s.StackAt(1).U64())
	}
}

// TestFloatAddition mirrors spec scenario 3.
func TestFloatAddition(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromF64(1.5)},
		{Op: PUSH, Operand: word.FromF64(2.25)},
		{Op: ADDF},
		{Op: HALT},
	}
	s := mustLoad(t, prog)
	if err := s.Run(-1); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if !s.Halt {
		t.Fatal("expected halt=true")
	}
	top := s.StackAt(s.StackSize() - 1).F64()
	if top != 3.75 {
		t.Errorf("expected top.f64 == 3.75, got %v", top)
	}
}

// TestStepBudget mirrors spec scenario 6.
func TestStepBudget(t *testing.T) {
	prog := []Instruction{
		{Op: NOP},
		{Op: NOP},
		{Op: NOP},
		{Op: HALT},
	}
	s := mustLoad(t, prog)
	if err := s.Run(2); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if s.IP != 2 || s.Halt {
		t.Fatalf("after run(2): expected ip=2 halt=false, got ip=%d halt=%v", s.IP, s.Halt)
	}
	if err := s.Run(-1); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if !s.Halt {
		t.Fatal("expected halt=true after unbounded run")
	}
}

// TestRunLimitZero checks that limit=0 executes nothing.
func TestRunLimitZero(t *testing.T) {
	s := mustLoad(t, []Instruction{{Op: HALT}})
	if err := s.Run(0); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if s.IP != 0 || s.Halt {
		t.Fatalf("expected no-op run, got ip=%d halt=%v", s.IP, s.Halt)
	}
}

func TestPushAtCapacityBoundary(t *testing.T) {
	prog := make([]Instruction, 0, StackCapacity)
	for i := 0; i < StackCapacity; i++ {
		prog = append(prog, Instruction{Op: PUSH, Operand: word.FromU64(uint64(i))})
	}
	s := mustLoad(t, prog)

	for i := 0; i < StackCapacity; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("push %d: unexpected trap: %v", i, err)
		}
	}
	if s.StackSize() != StackCapacity {
		t.Fatalf("expected full stack, got size %d", s.StackSize())
	}
	// The program itself is capped at ProgramCapacity instructions, so
	// rewind to a PUSH for the one that no longer fits.
	s.IP = 0
	wantTrap(t, s.Step(), StackOverflow)
}

func TestAddiUnderflow(t *testing.T) {
	s := mustLoad(t, []Instruction{{Op: ADDI}})
	wantTrap(t, s.Step(), StackUnderflow)

	s = mustLoad(t, []Instruction{
		{Op: PUSH, Operand: word.FromU64(1)},
		{Op: ADDI},
	})
	s.Step()
	wantTrap(t, s.Step(), StackUnderflow)
}

func TestNotAndGeqReportUnderflowNotOverflow(t *testing.T) {
	// spec §9: some reference versions mis-report STACK_OVERFLOW here;
	// this implementation must report STACK_UNDERFLOW.
	s := mustLoad(t, []Instruction{{Op: NOT}})
	wantTrap(t, s.Step(), StackUnderflow)

	s = mustLoad(t, []Instruction{{Op: GEQ}})
	wantTrap(t, s.Step(), StackUnderflow)
}

func TestDupRelAtStackSizeUnderflows(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromU64(7)},
		{Op: DUPREL, Operand: word.FromU64(1)}, // n == stack_size after push
	}
	s := mustLoad(t, prog)
	if err := s.Step(); err != nil {
		t.Fatalf("push: unexpected trap: %v", err)
	}
	wantTrap(t, s.Step(), StackUnderflow)
}

func TestDupRelNegativeOperandIsIllegal(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromU64(1)},
		{Op: DUPREL, Operand: word.FromI64(-1)},
	}
	s := mustLoad(t, prog)
	s.Step()
	wantTrap(t, s.Step(), IllegalOperand)
}

func TestGeqIsTopVersusBelowTop(t *testing.T) {
	// stack: [below=1, top=5] -> push 1 (top>=below), since 5>=1.
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromF64(1)},
		{Op: PUSH, Operand: word.FromF64(5)},
		{Op: GEQ},
		{Op: HALT},
	}
	s := mustLoad(t, prog)
	if err := s.Run(-1); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if s.StackAt(s.StackSize() - 1).U64() != 1 {
		t.Errorf("expected GEQ to compare top >= below-top and yield 1")
	}

	// stack: [below=5, top=1] -> 1>=5 is false -> 0.
	prog = []Instruction{
		{Op: PUSH, Operand: word.FromF64(5)},
		{Op: PUSH, Operand: word.FromF64(1)},
		{Op: GEQ},
	}
	s = mustLoad(t, prog)
	s.Run(-1)
	if s.StackAt(s.StackSize() - 1).U64() != 0 {
		t.Errorf("expected GEQ false case to yield 0")
	}
}

func TestIllegalInstructionAccess(t *testing.T) {
	s := mustLoad(t, []Instruction{{Op: JMP, Operand: word.FromU64(5)}})
	if err := s.Step(); err != nil {
		t.Fatalf("jmp itself should not trap: %v", err)
	}
	wantTrap(t, s.Step(), IllegalInstructionAccess)
}

func TestHaltIsAbsorbing(t *testing.T) {
	s := mustLoad(t, []Instruction{{Op: HALT}})
	if err := s.Step(); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if !s.Halt {
		t.Fatal("expected halt=true")
	}
	if s.IP != 0 {
		t.Errorf("expected ip unchanged by HALT, got %d", s.IP)
	}

	before := s.StackSize()
	if err := s.Run(-1); err != nil {
		t.Fatalf("run on halted machine should not trap: %v", err)
	}
	if s.StackSize() != before {
		t.Error("stack contents changed after halt")
	}
}

func TestPrintDebugDoesNotConsumeStack(t *testing.T) {
	var buf bytes.Buffer
	s := mustLoad(t, []Instruction{
		{Op: PUSH, Operand: word.FromU64(42)},
		{Op: PRINTDEBUG},
		{Op: HALT},
	})
	s.Debug = &buf
	if err := s.Run(-1); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if s.StackSize() != 1 {
		t.Errorf("expected PRINT_DEBUG to leave the stack untouched, got size %d", s.StackSize())
	}
	if buf.Len() == 0 {
		t.Error("expected a debug dump to be written")
	}
}

func TestPrintDebugOnEmptyStack(t *testing.T) {
	var buf bytes.Buffer
	s := mustLoad(t, []Instruction{{Op: PRINTDEBUG}})
	s.Debug = &buf
	if err := s.Step(); err != nil {
		t.Fatalf("unexpected trap: %v", err)
	}
	if got := buf.String(); got != "Stack:\n  [Empty]\n" {
		t.Errorf("unexpected empty-stack dump: %q", got)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	prog := []Instruction{
		{Op: PUSH, Operand: word.FromU64(10)},
		{Op: PUSH, Operand: word.FromF64(3.5)},
		{Op: JMPNZ, Operand: word.FromU64(0)},
		{Op: HALT},
	}
	encoded := Encode(prog)
	if len(encoded)%RecordSize != 0 {
		t.Fatalf("encoded length %d not a multiple of RecordSize", len(encoded))
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(prog) {
		t.Fatalf("expected %d instructions, got %d", len(prog), len(decoded))
	}
	for i := range prog {
		if decoded[i] != prog[i] {
			t.Errorf("instruction %d: got %+v, want %+v", i, decoded[i], prog[i])
		}
	}
}

func TestDecodeRejectsMisalignedLength(t *testing.T) {
	_, err := Decode(make([]byte, RecordSize+1))
	if err == nil {
		t.Fatal("expected an error for a misaligned program image")
	}
}
