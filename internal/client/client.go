// Package client talks to a remote LAN manager device over its HTTP API.
// It is used by the CLI to control peers found via discovery.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/landevice/lanmanager/internal/auth"
	"github.com/landevice/lanmanager/internal/command"
	apperrors "github.com/landevice/lanmanager/internal/errors"
	"github.com/landevice/lanmanager/internal/sysinfo"
)

// DefaultTimeout bounds each HTTP request to a peer.
const DefaultTimeout = 10 * time.Second

// Client is a handle to one remote device. It caches the session token from
// Login; when the peer reports the session invalid the token is dropped and
// the typed auth-expired error is returned so callers can re-login.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

// New creates a client for a peer at host:port.
func New(host string, port int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Token returns the cached session token, empty when not logged in.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken seeds the session token, for callers that persisted one.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// envelope mirrors the peer's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do issues one request and decodes the envelope into out (which may be
// nil). Envelope failures become typed errors; session failures also drop
// the cached token.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	env, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !env.Success {
		return c.mapFailure(env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// doRaw issues one request and returns the decoded envelope, handling only
// transport and hard HTTP failures itself.
func (c *Client) doRaw(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.New(apperrors.CodeAccessBlacklisted, "Device refused the connection")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

// mapFailure converts envelope errors into typed errors at the one place
// the wire messages are interpreted. Session failures clear the cached
// token so the next call starts clean.
func (c *Client) mapFailure(message string) error {
	switch message {
	case apperrors.MsgAuthRequired, apperrors.MsgInvalidToken:
		c.SetToken("")
		return apperrors.New(apperrors.CodeAuthExpired, message)
	default:
		return apperrors.New(apperrors.CodeUnknown, message)
	}
}

// Health describes a peer's health endpoint response.
type Health struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Device       string `json:"device"`
	UUID         string `json:"uuid"`
	Version      string `json:"version"`
	AuthRequired bool   `json:"requires_auth"`
}

// Health fetches the peer's identity and status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// AuthRequired reports whether the peer demands a login.
func (c *Client) AuthRequired(ctx context.Context) (bool, error) {
	var out struct {
		AuthRequired bool `json:"requires_auth"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, &out); err != nil {
		return false, err
	}
	return out.AuthRequired, nil
}

// Login performs the challenge handshake and caches the session token.
func (c *Client) Login(ctx context.Context, password string) error {
	var challengeResp struct {
		Challenge string `json:"challenge"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/challenge", nil, &challengeResp); err != nil {
		return err
	}

	req := map[string]string{
		"challenge": challengeResp.Challenge,
		"response":  auth.ComputeResponse(challengeResp.Challenge, password),
		"password":  password,
	}
	var result auth.LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &result); err != nil {
		return err
	}

	c.SetToken(result.Token)
	return nil
}

// SystemInfo fetches the peer's host vitals.
func (c *Client) SystemInfo(ctx context.Context) (*sysinfo.Snapshot, error) {
	var snap sysinfo.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/system/info", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Execute runs a command on the peer. A gate rejection comes back as a
// typed error; a command that ran but failed comes back as a Result with
// Success false, mirroring the envelope the peer sends.
func (c *Client) Execute(ctx context.Context, cmd string, args []string) (*command.Result, error) {
	// The token rides in the body as well as the Bearer header; original
	// hosts only read it from the body.
	req := map[string]any{"command": cmd, "args": args, "token": c.Token()}
	return c.commandRequest(ctx, "/api/command/execute", req)
}

// SystemAction triggers one of the power/session endpoints: shutdown,
// restart, sleep, or lock.
func (c *Client) SystemAction(ctx context.Context, action string) (*command.Result, error) {
	return c.commandRequest(ctx, "/api/system/"+action, map[string]string{"token": c.Token()})
}

// commandRequest handles the command endpoints, whose envelope success flag
// mirrors the command outcome rather than the request outcome. A failed
// command still carries a result payload; only a payload-less failure is a
// rejection.
func (c *Client) commandRequest(ctx context.Context, path string, body any) (*command.Result, error) {
	env, err := c.doRaw(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		var res command.Result
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		return &res, nil
	}
	return nil, c.mapFailure(env.Error)
}
