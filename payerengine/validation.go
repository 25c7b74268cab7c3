package payerengine

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidPayerID wraps every payer identifier format problem
var ErrInvalidPayerID = errors.New("invalid payer id")

const maxPayerIDLength = 100

var payerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// reserved ids collide with API path segments
var reservedPayerIDs = map[string]bool{
	"rules":  true,
	"claims": true,
	"health": true,
}

// ValidatePayerID checks a payer identifier: 1-100 characters of letters, digits,
// underscore or hyphen, starting with a letter or digit
func ValidatePayerID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidPayerID)
	}
	if len(id) > maxPayerIDLength {
		return fmt.Errorf("%w: length %d exceeds maximum of %d characters", ErrInvalidPayerID, len(id), maxPayerIDLength)
	}
	if !payerIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidPayerID, id, payerIDPattern.String())
	}
	if reservedPayerIDs[id] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidPayerID, id)
	}
	return nil
}
