package constant

import (
	"encoding/json"
	"fmt"
)

type DataAccess int8

const (
	ReadOnly DataAccess = iota
	WriteOnly
	ReadWrite
)

var DataAccessToString = map[DataAccess]string{
	ReadOnly:  "r",
	WriteOnly: "w",
	ReadWrite: "rw",
}

var StringToDataAccess = map[string]DataAccess{
	"r":  ReadOnly,
	"w":  WriteOnly,
	"rw": ReadWrite,
}

func (da DataAccess) CanRead() bool {
	return da != WriteOnly
}

func (da DataAccess) CanWrite() bool {
	return da != ReadOnly
}

func (da DataAccess) String() string {
	if s, ok := DataAccessToString[da]; ok {
		return s
	}
	return fmt.Sprintf("DataAccess(%d)", da)
}

func (da DataAccess) MarshalJSON() ([]byte, error) {
	if s, ok := DataAccessToString[da]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data access %d", da)
}

func (da *DataAccess) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToDataAccess[s]
	if !ok {
		return fmt.Errorf("unknown data access %s", s)
	}
	*da = v
	return nil
}
