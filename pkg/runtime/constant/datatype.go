package constant

import (
	"encoding/json"
	"fmt"
)

type DataType int8

const (
	Boolean DataType = iota
	Byte
	Int16
	Int32
	Int64
	Float
	Double
	String
)

var DataTypeToString = map[DataType]string{
	Boolean: "boolean",
	Byte:    "byte",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float:   "float",
	Double:  "double",
	String:  "string",
}

var StringToDataType = map[string]DataType{
	"boolean": Boolean,
	"byte":    Byte,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"float":   Float,
	"double":  Double,
	"string":  String,
}

// DataTypeWord is the number of 16 bit registers a value occupies on a word based device.
var DataTypeWord = map[DataType]uint16{
	Boolean: 1,
	Byte:    1,
	Int16:   1,
	Int32:   2,
	Int64:   4,
	Float:   2,
	Double:  4,
	String:  1,
}

func (dt DataType) IsNumeric() bool {
	switch dt {
	case Byte, Int16, Int32, Int64, Float, Double:
		return true
	}
	return false
}

func (dt DataType) IsInteger() bool {
	switch dt {
	case Byte, Int16, Int32, Int64:
		return true
	}
	return false
}

func (dt DataType) String() string {
	if s, ok := DataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", dt)
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := DataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %s", s)
	}
	*dt = v
	return nil
}
