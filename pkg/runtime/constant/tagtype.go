package constant

import (
	"encoding/json"
	"fmt"
)

type TagType int8

const (
	Input TagType = iota
	Output
	Calculated
	Virtual
)

var TagTypeToString = map[TagType]string{
	Input:      "input",
	Output:     "output",
	Calculated: "calculated",
	Virtual:    "virtual",
}

var StringToTagType = map[string]TagType{
	"input":      Input,
	"output":     Output,
	"calculated": Calculated,
	"virtual":    Virtual,
}

func (tt TagType) String() string {
	if s, ok := TagTypeToString[tt]; ok {
		return s
	}
	return fmt.Sprintf("TagType(%d)", tt)
}

func (tt TagType) MarshalJSON() ([]byte, error) {
	if s, ok := TagTypeToString[tt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown tag type %d", tt)
}

func (tt *TagType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToTagType[s]
	if !ok {
		return fmt.Errorf("unknown tag type %s", s)
	}
	*tt = v
	return nil
}
