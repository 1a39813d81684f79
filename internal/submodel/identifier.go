package submodel

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeIdentifier returns the URL-safe base64 form of an identifier used
// in URLs, topics and attachment keys.
func EncodeIdentifier(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeIdentifier reverses EncodeIdentifier. Padded input is accepted.
func DecodeIdentifier(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", fmt.Errorf("%w: identifier is not base64url: %v", ErrInvalidValue, err)
	}
	return string(b), nil
}
