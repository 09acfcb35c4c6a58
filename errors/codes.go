package errors

// ErrorCode identifies an application error category in responses and logs
type ErrorCode int32

const (
	ErrorCode_HTTP_OK          ErrorCode = 0
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_NOT_FOUND        ErrorCode = 1002
	ErrorCode_ALREADY_EXISTS   ErrorCode = 1003
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1004

	// Transcript pipeline errors
	ErrorCode_TRANSCRIPT_NOT_FOUND   ErrorCode = 2000
	ErrorCode_TRANSCRIPT_INELIGIBLE  ErrorCode = 2001
	ErrorCode_EXTRACTION_FAILED      ErrorCode = 2002
	ErrorCode_RISK_ASSESSMENT_FAILED ErrorCode = 2003
	ErrorCode_DISPATCH_FAILED        ErrorCode = 2004
	ErrorCode_SWEEP_FAILED           ErrorCode = 2005

	// Opportunity linkage errors
	ErrorCode_OPPORTUNITY_NOT_FOUND ErrorCode = 2100

	// Database errors
	ErrorCode_DB_QUERY_FAILED ErrorCode = 3000
)

var codeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                "OK",
	ErrorCode_INTERNAL:               "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:       "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:              "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:         "ALREADY_EXISTS",
	ErrorCode_INVALID_PAYLOAD:        "INVALID_PAYLOAD",
	ErrorCode_TRANSCRIPT_NOT_FOUND:   "TRANSCRIPT_NOT_FOUND",
	ErrorCode_TRANSCRIPT_INELIGIBLE:  "TRANSCRIPT_INELIGIBLE",
	ErrorCode_EXTRACTION_FAILED:      "EXTRACTION_FAILED",
	ErrorCode_RISK_ASSESSMENT_FAILED: "RISK_ASSESSMENT_FAILED",
	ErrorCode_DISPATCH_FAILED:        "DISPATCH_FAILED",
	ErrorCode_SWEEP_FAILED:           "SWEEP_FAILED",
	ErrorCode_OPPORTUNITY_NOT_FOUND:  "OPPORTUNITY_NOT_FOUND",
	ErrorCode_DB_QUERY_FAILED:        "DB_QUERY_FAILED",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
