package sum

import "fmt"

const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeQueueFull     = "QUEUE_FULL"
	CodeInternalError = "INTERNAL_ERROR"
)

const (
	msgRequiredMissing = "Required parameter missing"
	msgTypeMismatch    = "'a' and 'b' must be integers"
	msgBatchIDType     = "'batch_id' must be a string"
	msgBatchIDMissing  = "batch_id is missing"
	msgNoSuchID        = "No such id available"
	msgQueueFull       = "queue is full, try again later"
	msgInternal        = "Internal Server Error"
	msgSuccess         = "Success"
)

// Error はクライアントに返すエラーを表します。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationError(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}
