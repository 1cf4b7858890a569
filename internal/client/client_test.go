package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/landevice/lanmanager/internal/auth"
	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// fakePeer is a minimal remote device for client tests.
type fakePeer struct {
	password  string
	challenge string
	token     string
}

func (p *fakePeer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	write := func(w http.ResponseWriter, success bool, data any, errMsg string) {
		resp := map[string]any{"success": success}
		if data != nil {
			resp["data"] = data
		}
		if errMsg != "" {
			resp["error"] = errMsg
		}
		json.NewEncoder(w).Encode(resp)
	}

	mux.HandleFunc("/api/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		p.challenge = "challenge-nonce-1"
		write(w, true, map[string]string{"challenge": p.challenge}, "")
	})

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Challenge string `json:"challenge"`
			Response  string `json:"response"`
			Password  string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode login: %v", err)
		}
		if req.Challenge != p.challenge || req.Password != p.password {
			write(w, false, nil, "Invalid password")
			return
		}
		if req.Response != auth.ComputeResponse(p.challenge, p.password) {
			write(w, false, nil, "Invalid response")
			return
		}
		p.token = "session-token-1"
		write(w, true, map[string]any{"token": p.token, "expires_in": 3600}, "")
	})

	mux.HandleFunc("/api/system/info", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+p.token || p.token == "" {
			write(w, false, nil, "Invalid or expired token")
			return
		}
		write(w, true, map[string]any{"hostname": "remote-desk"}, "")
	})

	mux.HandleFunc("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		write(w, true, map[string]any{"requires_auth": p.password != ""}, "")
	})

	// Original hosts read the token for system actions from the POST body
	// only, never from headers.
	mux.HandleFunc("/api/system/lock", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Token != p.token || p.token == "" {
			write(w, false, nil, "Authentication required")
			return
		}
		write(w, true, map[string]any{"success": true, "stdout": "locked", "exit_code": 0}, "")
	})

	mux.HandleFunc("/api/command/execute", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Command string `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Command {
		case "lock":
			write(w, true, map[string]any{"success": true, "stdout": "locked", "exit_code": 0}, "")
		case "failing":
			write(w, false, map[string]any{"success": false, "stderr": "boom", "exit_code": 1}, "")
		default:
			write(w, false, nil, "Command '"+req.Command+"' is not in whitelist")
		}
	})

	return mux
}

func newTestClient(t *testing.T, peer *fakePeer) *Client {
	t.Helper()
	ts := httptest.NewServer(peer.handler(t))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	return New(u.Hostname(), port)
}

func TestLoginComputesChallengeResponse(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)

	if err := c.Login(context.Background(), "swordfish-123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.Token() != "session-token-1" {
		t.Fatalf("token = %q", c.Token())
	}

	snap, err := c.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("system info: %v", err)
	}
	if snap.Hostname != "remote-desk" {
		t.Fatalf("hostname = %q", snap.Hostname)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)

	err := c.Login(context.Background(), "wrong")
	if err == nil {
		t.Fatal("login should fail")
	}
	if !strings.Contains(err.Error(), "Invalid password") {
		t.Fatalf("err = %v", err)
	}
}

func TestExpiredSessionIsTypedAndDropsToken(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)
	c.SetToken("stale-token")

	_, err := c.SystemInfo(context.Background())
	if !apperrors.IsAuthExpired(err) {
		t.Fatalf("err = %v, want auth-expired", err)
	}
	if c.Token() != "" {
		t.Fatalf("stale token should be dropped, got %q", c.Token())
	}
}

func TestExecuteResultsAndRejections(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)
	if err := c.Login(context.Background(), "swordfish-123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	res, err := c.Execute(context.Background(), "lock", nil)
	if err != nil {
		t.Fatalf("execute lock: %v", err)
	}
	if !res.Success || res.Stdout != "locked" {
		t.Fatalf("lock result: %+v", res)
	}

	// A command that ran but failed still returns a result.
	res, err = c.Execute(context.Background(), "failing", nil)
	if err != nil {
		t.Fatalf("execute failing: %v", err)
	}
	if res.Success || res.Stderr != "boom" || res.ExitCode != 1 {
		t.Fatalf("failing result: %+v", res)
	}

	// A gate rejection has no result payload and surfaces as an error.
	if _, err := c.Execute(context.Background(), "restart", nil); err == nil {
		t.Fatal("rejected command should error")
	}
}

func TestAuthRequiredParsesWireKey(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)

	required, err := c.AuthRequired(context.Background())
	if err != nil {
		t.Fatalf("auth check: %v", err)
	}
	if !required {
		t.Fatal("peer with a password should report requires_auth")
	}
}

func TestSystemActionSendsBodyToken(t *testing.T) {
	peer := &fakePeer{password: "swordfish-123"}
	c := newTestClient(t, peer)

	// Without a session the body carries no usable token.
	if _, err := c.SystemAction(context.Background(), "lock"); !apperrors.IsAuthExpired(err) {
		t.Fatalf("err = %v, want auth-expired", err)
	}

	if err := c.Login(context.Background(), "swordfish-123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	res, err := c.SystemAction(context.Background(), "lock")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !res.Success || res.Stdout != "locked" {
		t.Fatalf("lock result: %+v", res)
	}
}

func TestBlacklistedPeerIsTyped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)

	u, _ := url.Parse(ts.URL)
	port, _ := strconv.Atoi(u.Port())
	c := New(u.Hostname(), port)

	_, err := c.Health(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeAccessBlacklisted) {
		t.Fatalf("err = %v, want blacklisted", err)
	}
}
