package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:        "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:          "Request body error",
	ErrCodeResourceExists:       "%s already exists.",
	ErrCodeResourceNotFound:     "%s not found.",
	ErrCodeLegalActionNotFound:  "Legal action not found.",
	ErrCodeAccessDenied:         "Tag %s does not permit this operation.",
	ErrCodeInvalidValue:         "Invalid value: %s",
	ErrCodeDeviceCommunication:  "Device communication failed: %s",
	ErrCodeInvalidConfiguration: "Invalid tag configuration: %s",
	ErrCodeReloadUnavailable:    "No tag set file is configured.",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: errors[ErrCodeRequestBody],
}

var ErrLegalActionNotFound = &responseError{
	Code:    ErrCodeLegalActionNotFound,
	Message: errors[ErrCodeLegalActionNotFound],
}

var ErrReloadUnavailable = &responseError{
	Code:    ErrCodeReloadUnavailable,
	Message: errors[ErrCodeReloadUnavailable],
}
