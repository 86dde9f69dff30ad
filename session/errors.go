package session

// User-facing validation messages.
const (
	MsgOutOfStock       = "Sorry. Product is out of stock."
	MsgMinimumQuantity  = "Quantity must be at least 1."
	MsgCartEmpty        = "Cart is empty."
	MsgPasswordMismatch = "Passwords do not match."
	MsgUnknownPayment   = "Please select a valid payment method."
)

// ValidationError is a locally detected precondition violation. It never
// reaches the reducer or the network; callers surface Message to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
