// Package shortcode produces the compact alphanumeric keys embedded in short
// URLs. The package is stateless; collision handling belongs to the caller.
package shortcode

import (
	"errors"
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set used for generated codes.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultLength is the length of generated codes unless configured otherwise.
const DefaultLength = 6

// ErrInvalidCustomCode is returned when a caller-supplied code doesn't match
// the allowed pattern.
var ErrInvalidCustomCode = errors.New("invalid custom code")

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

// ValidateCustom checks a caller-supplied code against the allowed pattern.
// Uniqueness is not checked here; the datastore's unique index decides that
// at insertion time.
func ValidateCustom(code string) error {
	const op = "shortcode.ValidateCustom"

	if !customCodeRe.MatchString(code) {
		return fmt.Errorf("%s: %q: %w", op, code, ErrInvalidCustomCode)
	}

	return nil
}

// Generate returns a random alphanumeric code of the given length, backed by
// crypto/rand. Predictable sequential codes would make short links enumerable.
func Generate(length int) (string, error) {
	const op = "shortcode.Generate"

	if length <= 0 {
		length = DefaultLength
	}

	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
