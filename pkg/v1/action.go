package v1

// WriteAction is the body of a tag write request. Value is in engineering units and must not be null.
type WriteAction struct {
	Value interface{} `json:"value"`
}
