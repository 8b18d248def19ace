// Package uuid generates the identifiers used for rows, outbox records and
// idempotency keys, and checks ids handed in by callers.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// canonical is the dashed 8-4-4-4-12 form with version 4 and the RFC 4122
// variant nibble.
var canonical = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New returns a random row identifier.
func New() string {
	return uuid.New().String()
}

// NewIdempotencyKey generates the client-side key a remote system uses to
// deduplicate retried creates. It is always distinct from the row identifier.
func NewIdempotencyKey() string {
	return uuid.New().String()
}

// NewFromString parses s and requires version 4. Any form uuid.Parse
// accepts is allowed, including braced and urn-prefixed ones.
func NewFromString(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	if id.Version() != 4 {
		return uuid.Nil, fmt.Errorf("expected UUID v4, got v%d", id.Version())
	}
	return id, nil
}

// IsValid reports whether s is a version 4 id in canonical form.
func IsValid(s string) bool {
	return canonical.MatchString(s)
}

// Validate is IsValid with an error naming the rejected value.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
