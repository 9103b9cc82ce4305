package constant

import (
	"encoding/json"
	"fmt"
)

type Quality int8

const (
	Good Quality = iota
	Bad
	Uncertain
)

var QualityToString = map[Quality]string{
	Good:      "good",
	Bad:       "bad",
	Uncertain: "uncertain",
}

var StringToQuality = map[string]Quality{
	"good":      Good,
	"bad":       Bad,
	"uncertain": Uncertain,
}

func (q Quality) String() string {
	if s, ok := QualityToString[q]; ok {
		return s
	}
	return fmt.Sprintf("Quality(%d)", q)
}

func (q Quality) MarshalJSON() ([]byte, error) {
	if s, ok := QualityToString[q]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown quality %d", q)
}

func (q *Quality) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToQuality[s]
	if !ok {
		return fmt.Errorf("unknown quality %s", s)
	}
	*q = v
	return nil
}
