// internal/circulation/errors.go
package circulation

import "errors"

// Request-scoped failures. Each maps to a distinct caller-facing code in the
// handler; none is retried by this layer.
var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrMemberInactive    = errors.New("member is not active")
	ErrItemRestricted    = errors.New("item is restricted from lending")
	ErrLoanLimitExceeded = errors.New("loan limit exceeded")
)
