package httpx

import "regexp"

// bearerRe matches an RFC 6750 Authorization header value. The scheme is
// case-insensitive and the token must be a single non-empty run of
// non-whitespace characters.
var bearerRe = regexp.MustCompile(`(?i)^Bearer\s+(\S+)$`)

// BearerToken extracts the bearer token from an Authorization-style header
// value. It returns the empty string when the header does not carry one.
func BearerToken(header string) string {
	m := bearerRe.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return m[1]
}
