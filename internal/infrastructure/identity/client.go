package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
	"github.com/dugouthq/lineup-api/internal/platform/resilience"
	"github.com/dugouthq/lineup-api/internal/usecase"
)

const (
	defaultCacheTTL        = 60 * time.Second
	defaultCacheMaxEntries = 4096
)

type Config struct {
	BaseURL        string
	IntrospectPath string
	Timeout        time.Duration
	CacheTTL       time.Duration
	CacheMax       int
	CircuitBreaker resilience.CircuitBreakerConfig
	HTTPClient     *http.Client
}

// Client resolves bearer tokens into principals through the identity
// provider's introspection endpoint. Verified principals are cached by
// token hash so hot callers do not introspect on every request.
type Client struct {
	client         *http.Client
	introspectURL  string
	logger         *logging.Logger
	cache          *principalCache
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	cacheMax := cfg.CacheMax
	if cacheMax <= 0 {
		cacheMax = defaultCacheMaxEntries
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		client:         httpClient,
		introspectURL:  buildURL(cfg.BaseURL, cfg.IntrospectPath),
		logger:         logger,
		cache:          newPrincipalCache(cacheTTL, cacheMax),
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool     `json:"active"`
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

func (c *Client) VerifyAccessToken(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	cacheKey := hashToken(token)
	if principal, ok := c.cache.Get(cacheKey); ok {
		return principal, nil
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "identity circuit breaker rejected request", "state", c.breaker.State())
			return user.Principal{}, fmt.Errorf("%w: identity circuit breaker is %s", usecase.ErrDependencyUnavailable, c.breaker.State())
		}
	}

	principal, err := c.introspect(ctx, token)
	c.recordCircuitResult(err)
	if err != nil {
		return user.Principal{}, err
	}

	c.cache.Set(cacheKey, principal)
	return principal, nil
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	encoded, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "marshal introspect request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(encoded))
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "create introspect request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: call identity url=%s: %v", usecase.ErrDependencyUnavailable, c.introspectURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return user.Principal{}, fmt.Errorf("%w: introspection denied", usecase.ErrUnauthorized)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: read introspect response: %v", usecase.ErrDependencyUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "identity introspection non-200", "status_code", resp.StatusCode)
		return user.Principal{}, fmt.Errorf("%w: identity status=%d", usecase.ErrDependencyUnavailable, resp.StatusCode)
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return user.Principal{}, fmt.Errorf("%w: decode introspect response: %v", usecase.ErrDependencyUnavailable, err)
	}

	if !decoded.Active {
		return user.Principal{}, fmt.Errorf("%w: inactive token", usecase.ErrUnauthorized)
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, fmt.Errorf("%w: introspect response has empty user_id", usecase.ErrDependencyUnavailable)
	}

	return user.Principal{
		UserID: decoded.UserID,
		Email:  decoded.Email,
		Admin:  hasRole(decoded.Roles, "admin"),
	}, nil
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled || c.breaker == nil {
		return
	}
	if err != nil && crerr.Is(err, usecase.ErrDependencyUnavailable) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func hasRole(roles []string, want string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), want) {
			return true
		}
	}
	return false
}

func buildURL(baseURL, path string) string {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return baseURL + path
}
