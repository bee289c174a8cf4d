package domain

import (
	"errors"
	"time"
)

// DownstreamJWT is the cache payload stored under an inbound bearer token:
// the short-lived IDM API token exchanged for it, plus the opaque secondary
// key the provider will present in a backchannel logout to find the bearer
// token again.
type DownstreamJWT struct {
	JWT          string `json:"jwt"`
	SecondaryKey string `json:"secondaryKey"`
	ExpiryTime   int64  `json:"expiryTime"` // absolute epoch seconds
}

// ErrInvalidDownstreamJWT reports a cached downstream-JWT payload that fails
// schema validation.
var ErrInvalidDownstreamJWT = errors.New("invalid downstream jwt record")

// Validate checks the structural invariants of a downstream-JWT record.
func (d *DownstreamJWT) Validate() error {
	if d.JWT == "" || d.SecondaryKey == "" || d.ExpiryTime <= 0 {
		return ErrInvalidDownstreamJWT
	}
	return nil
}

// Usable reports whether the record's expiry is strictly in the future.
// A physically present but expired record must be treated as absent.
func (d *DownstreamJWT) Usable(now time.Time) bool {
	return d.JWT != "" && d.ExpiryTime > 0 && time.Unix(d.ExpiryTime, 0).After(now)
}
