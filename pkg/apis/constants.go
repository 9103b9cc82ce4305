package apis

const (
	// HTTP Request Fields
	IfMatch = "If-Match"

	// HTTP Response Fields
	Location = "Location"
	ETag     = "ETag"

	// Self-defined Fields
	Filter = "filter"
	Detail = "detail"
	Sort   = "sort"
	DESC   = "desc"
	ASC    = "asc"
)
