package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/domain"
)

// sessionSuffix distinguishes session records from downstream-JWT records
// sharing the access-token keyspace.
const sessionSuffix = "-info"

// TokenCache is the process-wide token store: a persistent tier holding
// session records, downstream-JWT records and the secondary-key index, plus
// an in-memory tier used purely as a read short-circuit for downstream-JWT
// records.
//
// Any error from either tier propagates to the caller. Authentication must
// not proceed on a broken cache, so nothing here degrades silently.
type TokenCache struct {
	persistent Store
	memory     Store
}

func New(persistent, memory Store) *TokenCache {
	return &TokenCache{persistent: persistent, memory: memory}
}

// Ping verifies the persistent tier is reachable.
func (c *TokenCache) Ping(ctx context.Context) error {
	return c.persistent.Ping(ctx)
}

// Close releases both tiers.
func (c *TokenCache) Close() error {
	memErr := c.memory.Close()
	if err := c.persistent.Close(); err != nil {
		return err
	}
	return memErr
}

// Session returns the cached session record for an access token, or nil when
// absent. Payloads failing schema validation are rejected as errors, never
// returned as sessions.
func (c *TokenCache) Session(ctx context.Context, accessToken string) (*domain.SessionRecord, error) {
	raw, err := c.persistent.Get(ctx, accessToken+sessionSuffix)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutSession stores a session record under "<accessToken>-info" for ttl.
func (c *TokenCache) PutSession(ctx context.Context, accessToken string, rec *domain.SessionRecord, ttl time.Duration) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := c.persistent.Set(ctx, accessToken+sessionSuffix, raw, ttl); err != nil {
		return fmt.Errorf("put session record: %w", err)
	}
	return nil
}

// DownstreamFromMemory reads a downstream-JWT record from the in-memory tier.
func (c *TokenCache) DownstreamFromMemory(ctx context.Context, token string) (*domain.DownstreamJWT, error) {
	return c.downstream(ctx, c.memory, token)
}

// DownstreamFromPersistent reads a downstream-JWT record from the persistent tier.
func (c *TokenCache) DownstreamFromPersistent(ctx context.Context, token string) (*domain.DownstreamJWT, error) {
	return c.downstream(ctx, c.persistent, token)
}

func (c *TokenCache) downstream(ctx context.Context, tier Store, token string) (*domain.DownstreamJWT, error) {
	raw, err := tier.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get downstream jwt: %w", err)
	}

	var rec domain.DownstreamJWT
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode downstream jwt: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutDownstream stores a downstream-JWT record in both tiers and writes the
// secondary-key index entry pointing back at the bearer token, all under the
// same ttl.
func (c *TokenCache) PutDownstream(ctx context.Context, token string, rec *domain.DownstreamJWT, ttl time.Duration) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode downstream jwt: %w", err)
	}

	if err := c.persistent.Set(ctx, token, raw, ttl); err != nil {
		return fmt.Errorf("put downstream jwt: %w", err)
	}
	if err := c.memory.Set(ctx, token, raw, ttl); err != nil {
		return fmt.Errorf("put downstream jwt (memory): %w", err)
	}

	idx, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode secondary index: %w", err)
	}
	if err := c.persistent.Set(ctx, rec.SecondaryKey, idx, ttl); err != nil {
		return fmt.Errorf("put secondary index: %w", err)
	}
	return nil
}

// PromoteDownstream copies a record read from the persistent tier into the
// in-memory tier.
func (c *TokenCache) PromoteDownstream(ctx context.Context, token string, rec *domain.DownstreamJWT, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode downstream jwt: %w", err)
	}
	if err := c.memory.Set(ctx, token, raw, ttl); err != nil {
		return fmt.Errorf("promote downstream jwt: %w", err)
	}
	return nil
}

// BearerForSecondaryKey resolves a secondary key to the bearer token it
// indexes, or "" when the index entry is absent.
func (c *TokenCache) BearerForSecondaryKey(ctx context.Context, key string) (string, error) {
	raw, err := c.persistent.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get secondary index: %w", err)
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("decode secondary index: %w", err)
	}
	return token, nil
}

// DeleteSecondaryKey removes a secondary-key index entry.
func (c *TokenCache) DeleteSecondaryKey(ctx context.Context, key string) error {
	if err := c.persistent.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete secondary index: %w", err)
	}
	return nil
}

// DeleteCascade removes every entry derived from a bearer token: the
// secondary-key index entry (when the downstream record carries one), the
// downstream-JWT record, the session record and the in-memory mirror.
//
// All four deletes are attempted even when some keys are absent, so the
// cascade is idempotent.
func (c *TokenCache) DeleteCascade(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	rec, err := c.DownstreamFromPersistent(ctx, token)
	// A corrupt record still has to be purged; only infrastructure errors
	// abort the cascade.
	if err != nil && !errors.Is(err, domain.ErrInvalidDownstreamJWT) {
		return err
	}
	if rec != nil && rec.SecondaryKey != "" {
		if err := c.persistent.Delete(ctx, rec.SecondaryKey); err != nil {
			return fmt.Errorf("delete secondary index: %w", err)
		}
	}

	if err := c.persistent.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete downstream jwt: %w", err)
	}
	if err := c.persistent.Delete(ctx, token+sessionSuffix); err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	if err := c.memory.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete downstream jwt (memory): %w", err)
	}
	return nil
}

// PutNonce stores the OIDC request nonce under the opaque state value, so
// the callback can validate the ID token minted for this attempt.
func (c *TokenCache) PutNonce(ctx context.Context, state, nonce string, ttl time.Duration) error {
	raw, err := json.Marshal(nonce)
	if err != nil {
		return fmt.Errorf("encode nonce: %w", err)
	}
	if err := c.persistent.Set(ctx, "nonce-"+state, raw, ttl); err != nil {
		return fmt.Errorf("put nonce: %w", err)
	}
	return nil
}

// TakeNonce returns the nonce stored for a state value and deletes it; a
// state can only be redeemed once.
func (c *TokenCache) TakeNonce(ctx context.Context, state string) (string, error) {
	raw, err := c.persistent.Get(ctx, "nonce-"+state)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}

	var nonce string
	if err := json.Unmarshal(raw, &nonce); err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if err := c.persistent.Delete(ctx, "nonce-"+state); err != nil {
		return "", fmt.Errorf("delete nonce: %w", err)
	}
	return nonce, nil
}
