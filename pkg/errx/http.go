package errx

// HTTPErrorResponse represents a standard HTTP error response
type HTTPErrorResponse struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Type       string                 `json:"type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"status_code"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Code:       e.Code,
		Message:    e.Message,
		Type:       string(e.Type),
		Details:    e.Details,
		StatusCode: e.HTTPStatus,
	}
}

// FromError extracts an *Error from err, wrapping unknown errors as internal.
// The wrapped message is deliberately generic so that transport layers never
// leak internal failure causes to clients.
func FromError(err error) *Error {
	var customErr *Error
	if As(err, &customErr) {
		return customErr
	}
	return New("internal server error", TypeInternal).WithDetail("cause", "unclassified")
}
