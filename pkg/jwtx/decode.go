// Package jwtx provides unverified JWT decoding helpers.
//
// This service never mints or validates its own tokens. ID-token signature
// checks are delegated to the OIDC library; the decoders here exist for the
// places where only the token's shape matters: classifying inbound
// credentials by their header "typ", and unpacking backchannel logout
// tokens whose caller is trusted at the transport boundary.
package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed reports a string that is not a decodable JWT.
var ErrMalformed = errors.New("jwtx: malformed token")

// HeaderType returns the "typ" header of a JWT without verifying its
// signature. An absent typ header yields the empty string.
func HeaderType(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	typ, ok := parsed.Header["typ"].(string)
	if !ok {
		return "", nil
	}
	return typ, nil
}

// DecodeClaims returns the claims of a JWT without verifying its signature.
// Callers must only use this where trust is established out of band.
func DecodeClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

// StringSliceClaim reads a claim that is expected to be an array of strings.
// The second return reports whether the claim was present and well-typed.
func StringSliceClaim(claims jwt.MapClaims, name string) ([]string, bool) {
	raw, ok := claims[name]
	if !ok {
		return nil, false
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
