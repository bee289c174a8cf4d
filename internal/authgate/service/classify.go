package service

import (
	"regexp"

	"github.com/cpdevhub/authgate/pkg/jwtx"
)

// CredentialKind is the closed set of credential shapes the gateway accepts.
// Classification happens in exactly one place so the middleware never has to
// pattern-match tokens inline.
type CredentialKind int

const (
	// CredentialOpaque is a JWT that is not an internal plugin token: the
	// caller's real credential lives in the session cookie instead.
	CredentialOpaque CredentialKind = iota

	// CredentialExchangeToken is a control-plane CIC token that must be
	// exchanged with the IDM service for a downstream JWT.
	CredentialExchangeToken

	// CredentialInternalPlugin marks trusted plugin-to-plugin calls that
	// bypass the exchange entirely.
	CredentialInternalPlugin
)

// internalPluginTokenType is the JWT header typ the host framework stamps on
// inter-plugin service tokens.
const internalPluginTokenType = "vnd.backstage.plugin"

// cicTokenRe matches control-plane CIC tokens: the literal prefix followed
// by 24 url-safe base64 characters.
var cicTokenRe = regexp.MustCompile(`CIC~[0-9A-Za-z_-]{24}`)

// ClassifyCredential decides what kind of credential a bearer token is.
// Tokens that are neither CIC tokens nor decodable JWTs yield
// ErrUndecodableToken.
func ClassifyCredential(token string) (CredentialKind, error) {
	if cicTokenRe.MatchString(token) {
		return CredentialExchangeToken, nil
	}

	typ, err := jwtx.HeaderType(token)
	if err != nil {
		return CredentialOpaque, ErrUndecodableToken
	}
	if typ == internalPluginTokenType {
		return CredentialInternalPlugin, nil
	}
	return CredentialOpaque, nil
}
