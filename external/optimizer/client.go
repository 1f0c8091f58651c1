package optimizer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dugouthq/lineup-api/internal/platform/logging"
	"github.com/dugouthq/lineup-api/internal/platform/resilience"
	"github.com/dugouthq/lineup-api/internal/usecase"
)

const assignPath = "/v1/assignments"

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	APIKey         string
	CircuitBreaker resilience.CircuitBreakerConfig
	HTTPClient     *http.Client
}

// Client talks to the external position optimizer. Every AssignPositions
// call is exactly one HTTP attempt: a failed or slow call surfaces
// immediately and identical concurrent requests each go out on their own.
type Client struct {
	client         *http.Client
	baseURL        string
	apiKey         string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg Config, logger *logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		client:         httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) AssignPositions(ctx context.Context, req usecase.OptimizeRequest) (usecase.OptimizeResponse, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "optimizer circuit breaker rejected request", "state", c.breaker.State())
			return usecase.OptimizeResponse{}, fmt.Errorf("%w: circuit breaker is %s", usecase.ErrOptimizerUnreachable, c.breaker.State())
		}
	}

	baseURL, err := validateHTTPBaseURL(c.baseURL)
	if err != nil {
		return usecase.OptimizeResponse{}, crerr.Wrap(err, "invalid OPTIMIZER_BASE_URL")
	}
	callURL := baseURL + assignPath

	body, err := sonic.Marshal(encodeRequest(req))
	if err != nil {
		return usecase.OptimizeResponse{}, crerr.Wrap(err, "marshal optimizer payload")
	}
	bodyText := truncateForLog(string(body), 4096)

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("optimizer.url", callURL),
			attribute.String("optimizer.request_body", bodyText),
			attribute.String("optimizer.request_curl_preview", buildCurlPreview(callURL, bodyText, c.apiKey != "")),
		)
	}
	c.logger.DebugContext(ctx, "optimizer request", "url", callURL, "game_id", req.GameID, "players", len(req.Players))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, strings.NewReader(string(body)))
	if err != nil {
		return usecase.OptimizeResponse{}, crerr.Wrap(err, "create optimizer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		callErr := fmt.Errorf("%w: call optimizer url=%s: %v", usecase.ErrOptimizerUnreachable, callURL, err)
		c.recordCircuitResult(callErr)
		return usecase.OptimizeResponse{}, callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(raw))
		var callErr error
		if isTransientStatus(resp.StatusCode) {
			callErr = fmt.Errorf("%w: optimizer status=%d body=%s", usecase.ErrOptimizerUnreachable, resp.StatusCode, detail)
		} else {
			callErr = fmt.Errorf("%w: status=%d body=%s", usecase.ErrOptimizerRejected, resp.StatusCode, detail)
		}
		c.recordCircuitResult(callErr)
		return usecase.OptimizeResponse{}, callErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		callErr := fmt.Errorf("%w: read optimizer response: %v", usecase.ErrOptimizerUnreachable, err)
		c.recordCircuitResult(callErr)
		return usecase.OptimizeResponse{}, callErr
	}
	c.recordCircuitResult(nil)

	out, err := decodeResponse(raw)
	if err != nil {
		return usecase.OptimizeResponse{}, err
	}

	c.logger.DebugContext(ctx, "optimizer response", "game_id", req.GameID, "placed", len(out.Players))
	return out, nil
}

// wireRequest is the optimizer's request body: the ordered player id
// list, the pinned slot map, each player's historical position counts,
// the game's slot count, and each player's preference sets.
type wireRequest struct {
	Players           []string                   `json:"players"`
	FixedAssignments  map[string]map[int]string  `json:"fixed_assignments"`
	ActualCounts      map[string]map[string]int  `json:"actual_counts"`
	GameSlots         int                        `json:"game_slots"`
	PlayerPreferences map[string]wirePreferences `json:"player_preferences"`
}

type wirePreferences struct {
	Preferred  []string `json:"preferred"`
	Restricted []string `json:"restricted"`
}

func encodeRequest(req usecase.OptimizeRequest) wireRequest {
	players := make([]string, len(req.Players))
	counts := make(map[string]map[string]int, len(req.Players))
	prefs := make(map[string]wirePreferences, len(req.Players))
	for i, pl := range req.Players {
		players[i] = pl.PlayerID
		counts[pl.PlayerID] = pl.Stats.PositionCounts
		prefs[pl.PlayerID] = wirePreferences{
			Preferred:  pl.PreferredPositions,
			Restricted: pl.RestrictedPositions,
		}
	}
	fixed := req.FixedAssignments
	if fixed == nil {
		fixed = map[string]map[int]string{}
	}

	return wireRequest{
		Players:           players,
		FixedAssignments:  fixed,
		ActualCounts:      counts,
		GameSlots:         req.SlotCount,
		PlayerPreferences: prefs,
	}
}

type wirePlayer struct {
	PlayerID string            `json:"player_id"`
	Slots    map[string]string `json:"slots"`
	Innings  map[string]string `json:"innings"`
}

// decodeResponse expects a top-level array of per-player objects and
// accepts slot maps under either the "slots" or the legacy "innings" key,
// both keyed by stringified 1-based slot numbers.
func decodeResponse(raw []byte) (usecase.OptimizeResponse, error) {
	var rows []wirePlayer
	if err := sonic.Unmarshal(raw, &rows); err != nil {
		return usecase.OptimizeResponse{}, fmt.Errorf("%w: decode body: %v", usecase.ErrOptimizerMalformedResponse, err)
	}

	out := usecase.OptimizeResponse{Players: make([]usecase.AssignedPlayer, 0, len(rows))}
	for _, pl := range rows {
		slots := pl.Slots
		if slots == nil {
			slots = pl.Innings
		}
		assignments := make(map[int]string, len(slots))
		for key, label := range slots {
			slot, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return usecase.OptimizeResponse{}, fmt.Errorf("%w: slot key %q is not a number", usecase.ErrOptimizerMalformedResponse, key)
			}
			assignments[slot] = label
		}
		out.Players = append(out.Players, usecase.AssignedPlayer{
			PlayerID:    pl.PlayerID,
			Assignments: assignments,
		})
	}

	return out, nil
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

func buildCurlPreview(callURL, body string, withAuth bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendPart := func(part string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(part)
	}

	appendPart("curl")
	appendPart("-X")
	appendPart("POST")
	appendPart(shellQuote(callURL))
	appendPart("-H")
	appendPart(shellQuote("Content-Type: application/json"))
	if withAuth {
		appendPart("-H")
		appendPart(shellQuote("Authorization: Bearer ***"))
	}
	appendPart("-d")
	appendPart(shellQuote(body))

	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled || c.breaker == nil {
		return
	}
	if err == nil {
		c.breaker.RecordSuccess()
		return
	}
	if crerr.Is(err, usecase.ErrOptimizerUnreachable) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func isTransientStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
