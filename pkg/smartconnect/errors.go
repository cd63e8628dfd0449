package smartconnect

import "fmt"

// APIError is the canonical broker failure: every non-success response,
// whatever field shape the endpoint used, becomes one of these.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartapi %s: %s", e.Code, e.Message)
}

// IsAuthError reports whether the code means the session token is missing,
// invalid, or expired.
func (e *APIError) IsAuthError() bool {
	switch e.Code {
	case "AG8001", "AG8002", "AG8003", // invalid/expired/missing token
		"AB8050", "AB8051", // invalid refresh token / token expired
		"AB1010", // login failed
		"TokenException":
		return true
	}
	return false
}

// TransportError wraps a network-level failure (DNS, timeout, connection
// reset) so callers can tell it apart from an explicit broker rejection.
type TransportError struct {
	Route string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smartapi transport %s: %v", e.Route, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
