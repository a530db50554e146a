package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Authentication errors
// 13000-13999: Submission & Judge module errors
// 14000-14999: Tournament module errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Authentication Errors (11000-11999) ==========

	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// ========== Submission & Judge Module Errors (13000-13999) ==========

	// Submission (13000-13099)
	CodeTooLarge        ErrorCode = 13002
	SubmitTooFrequently ErrorCode = 13004

	// Judge (13100-13199)
	JudgeSystemError    ErrorCode = 13101
	TestCaseFetchFailed ErrorCode = 13110
	ExecutorUnavailable ErrorCode = 13111
	ExecutionFailed     ErrorCode = 13112

	// ========== Tournament Module Errors (14000-14999) ==========

	RoomNotFound          ErrorCode = 14000
	PlayerNotFound        ErrorCode = 14001
	InvalidRoomTransition ErrorCode = 14002
	RoomVersionConflict   ErrorCode = 14003
	RoomBusy              ErrorCode = 14004
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Authentication
	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	// Submission
	CodeTooLarge:        "Code is too large",
	SubmitTooFrequently: "Submitting too frequently, please wait",

	// Judge
	JudgeSystemError:    "Judge system error",
	TestCaseFetchFailed: "Failed to fetch test cases",
	ExecutorUnavailable: "Code execution backend unavailable",
	ExecutionFailed:     "Code execution failed",

	// Tournament
	RoomNotFound:          "Room not found",
	PlayerNotFound:        "Player not found",
	InvalidRoomTransition: "Operation not allowed in the current room state",
	RoomVersionConflict:   "Room was modified concurrently, please retry",
	RoomBusy:              "Room is busy, please retry",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == RoomNotFound, c == PlayerNotFound:
		return 404
	case c == InvalidRoomTransition, c == RoomVersionConflict, c == RoomBusy:
		return 409
	case c == CodeTooLarge:
		return 413
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == TestCaseFetchFailed, c == ExecutorUnavailable, c == ExecutionFailed:
		return 502
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}
