package validators

import (
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid auth token")

// BearerToken extracts the token from an Authorization header value. An empty
// header reports ok=false with no error; a header in any other scheme or with
// an empty token is invalid.
func BearerToken(header string) (token string, ok bool, err error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return "", false, nil
	}
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return "", false, ErrInvalidToken
	}
	token = strings.TrimSpace(raw[7:])
	if token == "" {
		return "", false, ErrInvalidToken
	}
	return token, true, nil
}
