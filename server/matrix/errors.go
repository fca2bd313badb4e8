package matrix

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Matrix error codes the client reacts to.
const (
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
)

// Error is a non-2xx response from the homeserver.
type Error struct {
	StatusCode int    `json:"-"`
	ErrCode    string `json:"errcode"`
	Message    string `json:"error"`
	Body       string `json:"-"`
}

func (e *Error) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("matrix API error: %d %s: %s", e.StatusCode, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("matrix API error: %d %s", e.StatusCode, e.Body)
}

// newError builds an Error from a response, keeping the raw body when it is not a Matrix error object.
func newError(statusCode int, body []byte) *Error {
	matrixErr := &Error{StatusCode: statusCode, Body: string(body)}
	_ = json.Unmarshal(body, matrixErr)
	return matrixErr
}

// IsNotFound checks if an error is a Matrix 404 / M_NOT_FOUND error
func IsNotFound(err error) bool {
	var matrixErr *Error
	if errors.As(err, &matrixErr) {
		return matrixErr.StatusCode == http.StatusNotFound || matrixErr.ErrCode == ErrCodeNotFound
	}
	return false
}
