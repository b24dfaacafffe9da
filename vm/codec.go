package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/Urethramancer/vvm/word"
)

// RecordSize is the on-disk size of one instruction: an 8-byte
// little-endian opcode index followed by 8 raw operand bytes (spec §6's
// recommended canonical layout).
const RecordSize = 16

// Encode serializes prog to its flat binary form: a raw concatenation of
// RecordSize-byte records, no header and no footer.
func Encode(prog []Instruction) []byte {
	out := make([]byte, len(prog)*RecordSize)
	for i, inst := range prog {
		rec := out[i*RecordSize : (i+1)*RecordSize]
		binary.LittleEndian.PutUint64(rec[0:8], uint64(inst.Op))
		binary.LittleEndian.PutUint64(rec[8:16], uint64(inst.Operand))
	}
	return out
}

// Decode parses a flat binary program image. The file length must be an
// exact multiple of RecordSize and must not describe more than
// ProgramCapacity instructions.
func Decode(data []byte) ([]Instruction, error) {
	if len(data)%RecordSize != 0 {
		return nil, fmt.Errorf("program image length %d is not a multiple of the %d-byte record size", len(data), RecordSize)
	}
	count := len(data) / RecordSize
	if count > ProgramCapacity {
		return nil, fmt.Errorf("program has %d instructions, exceeds capacity %d", count, ProgramCapacity)
	}

	prog := make([]Instruction, count)
	for i := range prog {
		rec := data[i*RecordSize : (i+1)*RecordSize]
		prog[i] = Instruction{
			Op:      Opcode(binary.LittleEndian.Uint64(rec[0:8])),
			Operand: word.Word(binary.LittleEndian.Uint64(rec[8:16])),
		}
	}
	return prog, nil
}
