package algorand

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Global-state value types as reported by algod.
const (
	valueBytes = 1
	valueUint  = 2
)

// Value is one global-state entry. Exactly one of Bytes or Uint is meaningful,
// according to IsUint.
type Value struct {
	Bytes  []byte
	Uint   uint64
	IsUint bool
}

// AppState is an application's decoded global state keyed by UTF-8 key.
type AppState map[string]Value

// Uint returns the integer stored under key.
func (s AppState) Uint(key string) (uint64, bool) {
	v, ok := s[key]
	if !ok || !v.IsUint {
		return 0, false
	}
	return v.Uint, true
}

// PendingTx is the pool status of a submitted transaction.
type PendingTx struct {
	// ConfirmedRound is zero while the transaction is still pending.
	ConfirmedRound uint64
	// PoolError is set when the node rejected the transaction.
	PoolError string
}

// Client is the algod REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the algod node at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiApplication struct {
	ID     uint64 `json:"id"`
	Params struct {
		GlobalState []struct {
			Key   string `json:"key"`
			Value struct {
				Type  int    `json:"type"`
				Bytes string `json:"bytes"`
				Uint  uint64 `json:"uint"`
			} `json:"value"`
		} `json:"global-state"`
	} `json:"params"`
}

// AppState fetches and decodes the global state of application appID.
func (c *Client) AppState(ctx context.Context, appID uint64) (AppState, error) {
	body, err := c.doGet(ctx, "/v2/applications/"+strconv.FormatUint(appID, 10))
	if err != nil {
		return nil, fmt.Errorf("algorand: app %d: %w", appID, err)
	}

	var app apiApplication
	if err := json.Unmarshal(body, &app); err != nil {
		return nil, fmt.Errorf("algorand: decode app %d: %w", appID, err)
	}

	state := make(AppState, len(app.Params.GlobalState))
	for _, kv := range app.Params.GlobalState {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("algorand: app %d: decode key %q: %w", appID, kv.Key, err)
		}
		switch kv.Value.Type {
		case valueUint:
			state[string(key)] = Value{Uint: kv.Value.Uint, IsUint: true}
		case valueBytes:
			b, err := base64.StdEncoding.DecodeString(kv.Value.Bytes)
			if err != nil {
				return nil, fmt.Errorf("algorand: app %d: decode value of %q: %w", appID, key, err)
			}
			state[string(key)] = Value{Bytes: b}
		}
	}
	return state, nil
}

type apiPendingTx struct {
	ConfirmedRound uint64 `json:"confirmed-round"`
	PoolError      string `json:"pool-error"`
}

// PendingTx reports the status of transaction txID. Unknown transactions
// yield domain.ErrNotFound.
func (c *Client) PendingTx(ctx context.Context, txID string) (PendingTx, error) {
	body, err := c.doGet(ctx, "/v2/transactions/pending/"+url.PathEscape(txID))
	if err != nil {
		return PendingTx{}, fmt.Errorf("algorand: pending tx %s: %w", txID, err)
	}
	var p apiPendingTx
	if err := json.Unmarshal(body, &p); err != nil {
		return PendingTx{}, fmt.Errorf("algorand: decode pending tx %s: %w", txID, err)
	}
	return PendingTx{ConfirmedRound: p.ConfirmedRound, PoolError: p.PoolError}, nil
}

// Health checks that the node is reachable.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.doGet(ctx, "/health"); err != nil {
		return fmt.Errorf("algorand: health: %w", err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Algo-API-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
