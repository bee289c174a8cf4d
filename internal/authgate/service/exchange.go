package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/domain"
)

const (
	// idmTenantID is the fixed tenant identifier the IDM exchange expects.
	idmTenantID = "TSC"

	// defaultIDMTimeout bounds the IDM exchange call.
	defaultIDMTimeout = 30 * time.Second

	// maxIDMResponseSize caps how much of an IDM response body is read (1 MB).
	maxIDMResponseSize = 1 << 20
)

// ExchangeService resolves a control-plane bearer token into a downstream
// IDM API JWT, checking the in-memory tier, then the persistent tier, then
// calling the IDM exchange endpoint as a last resort.
//
// Concurrent misses for the same token may each call the IDM endpoint; the
// exchange is idempotent upstream and last writer wins in the cache, so no
// request-level de-duplication is attempted.
type ExchangeService struct {
	Cache *cache.TokenCache

	// BaseURL is the internal proxy host, APIPath the IDM exchange path.
	BaseURL string
	APIPath string

	// HTTPClient is used for the exchange call; a bounded default is used
	// when nil.
	HTTPClient *http.Client
}

type idmExchangeRequest struct {
	Token    string `json:"token"`
	TenantID string `json:"tenant_id"`
}

func (s *ExchangeService) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: defaultIDMTimeout}
}

// JWTForToken returns the downstream JWT for a bearer token, populating the
// caches on a miss. Expired cached records are cascaded away before the
// fallback exchange.
func (s *ExchangeService) JWTForToken(ctx context.Context, token string) (string, error) {
	now := time.Now()

	rec, err := s.Cache.DownstreamFromMemory(ctx, token)
	if err != nil {
		return "", err
	}
	if rec != nil {
		if rec.Usable(now) {
			return rec.JWT, nil
		}
		// The memory tier mirrors the persistent tier, so a stale entry
		// here means the persistent copy is stale too.
		if err := s.Cache.DeleteCascade(ctx, token); err != nil {
			return "", err
		}
	} else {
		per, err := s.Cache.DownstreamFromPersistent(ctx, token)
		if err != nil {
			return "", err
		}
		if per != nil {
			if per.Usable(now) {
				ttl := domain.TTLUntil(per.ExpiryTime)
				if err := s.Cache.PromoteDownstream(ctx, token, per, ttl); err != nil {
					return "", err
				}
				return per.JWT, nil
			}
			if err := s.Cache.DeleteCascade(ctx, token); err != nil {
				return "", err
			}
		}
	}

	return s.exchange(ctx, token)
}

// exchange calls the IDM endpoint and caches the result in both tiers plus
// the secondary-key index.
func (s *ExchangeService) exchange(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(idmExchangeRequest{Token: token, TenantID: idmTenantID})
	if err != nil {
		return "", fmt.Errorf("encode idm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+s.APIPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build idm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("call idm exchange: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxIDMResponseSize))
	if err != nil {
		return "", fmt.Errorf("read idm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &IDMStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var rec domain.DownstreamJWT
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", ErrIDMResponse
	}
	if err := rec.Validate(); err != nil {
		return "", ErrIDMResponse
	}

	ttl := domain.TTLUntil(rec.ExpiryTime)
	if err := s.Cache.PutDownstream(ctx, token, &rec, ttl); err != nil {
		return "", err
	}

	return rec.JWT, nil
}
