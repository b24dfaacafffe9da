// Package disassembler renders a decoded program back to text: one line
// per instruction, mnemonic followed by its operand when the opcode has
// one. It does not attempt to reconstruct labels; jump targets print as
// plain addresses.
package disassembler

import (
	"fmt"
	"strings"

	"github.com/Urethramancer/vvm/vm"
)

// Disassemble renders prog as source text, one instruction per line.
func Disassemble(prog []vm.Instruction) string {
	var b strings.Builder
	for _, inst := range prog {
		writeLine(&b, inst)
	}
	return b.String()
}

// Line renders a single instruction the same way Disassemble renders one
// of its lines, without the trailing newline.
func Line(inst vm.Instruction) string {
	var b strings.Builder
	if !inst.Op.Valid() {
		fmt.Fprintf(&b, "?? %d", uint32(inst.Op))
		return b.String()
	}
	if inst.Op.HasOperand() {
		fmt.Fprintf(&b, "%s %d", inst.Op, inst.Operand.I64())
		return b.String()
	}
	b.WriteString(inst.Op.String())
	return b.String()
}

func writeLine(b *strings.Builder, inst vm.Instruction) {
	b.WriteString(Line(inst))
	b.WriteByte('\n')
}
