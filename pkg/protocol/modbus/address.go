package modbus

import (
	"fmt"
	"strconv"
	"strings"
	"tagscan/pkg/runtime/constant"
)

// Table is one of the four modbus data tables.
type Table uint8

const (
	Coil Table = iota
	DiscreteInput
	InputRegister
	HoldingRegister
)

var TableToString = map[Table]string{
	Coil:            "coil",
	DiscreteInput:   "discreteInput",
	InputRegister:   "inputRegister",
	HoldingRegister: "holdingRegister",
}

var prefixToTable = map[byte]Table{
	'0': Coil,
	'1': DiscreteInput,
	'3': InputRegister,
	'4': HoldingRegister,
}

const (
	maxRegisterSpan = 125
	maxBitSpan      = 2000
)

func (t Table) String() string {
	return TableToString[t]
}

func (t Table) IsBit() bool {
	return t == Coil || t == DiscreteInput
}

func (t Table) Writable() bool {
	return t == Coil || t == HoldingRegister
}

func (t Table) maxSpan() uint16 {
	if t.IsBit() {
		return maxBitSpan
	}
	return maxRegisterSpan
}

// Address is a parsed tag address.
//
// Addresses use the 5 or 6 digit reference notation: the first digit selects the
// table (0 coil, 1 discrete input, 3 input register, 4 holding register) and the
// rest is the one-based reference, so 40001 is holding register offset 0.
// A ".n" suffix selects bit n of a register for boolean tags and a ":n" suffix
// sets the register count of string tags.
type Address struct {
	Table  Table
	Offset uint16
	Bit    int
	Length uint16
}

func ParseAddress(s string) (*Address, error) {
	raw := strings.TrimSpace(s)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty modbus address")
	}
	a := &Address{Bit: -1}

	if i := strings.IndexByte(raw, ':'); i >= 0 {
		n, err := strconv.ParseUint(raw[i+1:], 10, 16)
		if err != nil || n == 0 || n > maxRegisterSpan {
			return nil, fmt.Errorf("invalid register count in modbus address %q", s)
		}
		a.Length = uint16(n)
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		n, err := strconv.ParseUint(raw[i+1:], 10, 8)
		if err != nil || n > 15 {
			return nil, fmt.Errorf("invalid bit in modbus address %q", s)
		}
		a.Bit = int(n)
		raw = raw[:i]
	}

	if len(raw) != 5 && len(raw) != 6 {
		return nil, fmt.Errorf("modbus address %q must have 5 or 6 digits", s)
	}
	table, ok := prefixToTable[raw[0]]
	if !ok {
		return nil, fmt.Errorf("unknown table prefix %q in modbus address %q", raw[0], s)
	}
	ref, err := strconv.ParseUint(raw[1:], 10, 32)
	if err != nil || ref == 0 || ref > 65536 {
		return nil, fmt.Errorf("invalid reference in modbus address %q", s)
	}
	a.Table = table
	a.Offset = uint16(ref - 1)

	if a.Bit >= 0 && table.IsBit() {
		return nil, fmt.Errorf("bit selection is not valid on %s address %q", table, s)
	}
	return a, nil
}

// Quantity is the number of coils or registers a value of dt occupies at this address.
func (a *Address) Quantity(dt constant.DataType) uint16 {
	if a.Table.IsBit() {
		return 1
	}
	if dt == constant.String && a.Length > 0 {
		return a.Length
	}
	return constant.DataTypeWord[dt]
}
