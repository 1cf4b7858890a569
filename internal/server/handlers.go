package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/landevice/lanmanager/internal/errors"
	"github.com/landevice/lanmanager/internal/storage"
)

// apiResponse is the uniform envelope for every HTTP endpoint.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

// writeError reports a failure in the envelope. The HTTP status stays 200;
// clients key off the success flag. Only the blacklist returns a bare 403.
func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, apiResponse{Success: false, Error: message})
}

// Handler builds the full HTTP surface: the API routes, the WebSocket
// endpoint, and the blacklist filter wrapped around everything. The filter
// runs before any body is read, so blocked peers get a hard 403 for every
// path including the upgrade.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/auth/check", s.handleAuthCheck)
	mux.HandleFunc("/api/auth/challenge", s.handleChallenge)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/password", s.handlePasswordChange)
	mux.HandleFunc("/api/system/info", s.handleSystemInfo)
	mux.HandleFunc("/api/system/shutdown", s.systemActionHandler("shutdown"))
	mux.HandleFunc("/api/system/restart", s.systemActionHandler("restart"))
	mux.HandleFunc("/api/system/sleep", s.systemActionHandler("sleep"))
	mux.HandleFunc("/api/system/lock", s.systemActionHandler("lock"))
	mux.HandleFunc("/api/command/execute", s.handleCommandExecute)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/audit", s.handleAudit)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.blacklistFilter(mux)
}

// blacklistFilter rejects blocked client addresses before the wrapped
// handler sees the request.
func (s *Server) blacklistFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AccessPolicy != nil && s.opts.AccessPolicy().Blocked(r.RemoteAddr) {
			log.Printf("server: blocked request from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken enforces session auth for protected endpoints. Returns false
// after writing the error response. Hosts without a password skip the check.
func (s *Server) requireToken(w http.ResponseWriter, r *http.Request) bool {
	return s.requireTokenValue(w, extractToken(r))
}

func (s *Server) requireTokenValue(w http.ResponseWriter, token string) bool {
	if !s.opts.Gate.RequiresAuth() {
		return true
	}
	if token == "" {
		writeError(w, apperrors.MsgAuthRequired)
		return false
	}
	if !s.opts.Gate.VerifyToken(token) {
		writeError(w, apperrors.MsgInvalidToken)
		return false
	}
	return true
}

// extractToken pulls the session token from the Authorization header or the
// token query parameter.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
	}
	return r.URL.Query().Get("token")
}

// serviceName identifies this protocol on the health endpoint; peers check
// it before treating a responder as one of ours.
const serviceName = "lan-device-manager"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"status":        "healthy",
		"service":       serviceName,
		"device":        s.opts.DeviceName,
		"uuid":          s.opts.DeviceUUID,
		"version":       s.opts.Version,
		"requires_auth": s.opts.Gate.RequiresAuth(),
	})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"requires_auth": s.opts.Gate.RequiresAuth(),
	})
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Gate.RequiresAuth() {
		writeError(w, "Authentication is not enabled")
		return
	}
	writeData(w, map[string]string{
		"challenge": s.opts.Gate.GenerateChallenge(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "POST required")
		return
	}

	var req struct {
		Challenge string `json:"challenge"`
		Response  string `json:"response"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body")
		return
	}

	result, err := s.opts.Gate.Authenticate(req.Challenge, req.Response, req.Password)
	if err != nil {
		log.Printf("server: login failed from %s: %s", r.RemoteAddr, apperrors.GetMessage(err))
		writeError(w, apperrors.GetMessage(err))
		return
	}
	writeData(w, result)
}

// handlePasswordChange sets or rotates the access password. Setting the
// first password is open; changing an existing one needs a valid session
// and the old password.
func (s *Server) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "POST required")
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body")
		return
	}

	var err error
	if s.opts.Gate.RequiresAuth() {
		if !s.requireToken(w, r) {
			return
		}
		err = s.opts.Gate.ChangePassword(req.OldPassword, req.NewPassword)
	} else {
		err = s.opts.Gate.SetPassword(req.NewPassword)
	}
	if err != nil {
		writeError(w, apperrors.GetMessage(err))
		return
	}
	writeData(w, map[string]string{"status": "password updated"})
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	if !s.requireToken(w, r) {
		return
	}
	snap, err := s.opts.SysInfo.Get()
	if err != nil {
		writeError(w, "System information unavailable")
		return
	}
	writeData(w, snap)
}

// systemActionHandler builds the handler for one power/session action. The
// action goes through the same gate and executor as any other command, so
// the whitelist applies. The token and optional args arrive in the POST
// body; header and query tokens are accepted too.
func (s *Server) systemActionHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, "POST required")
			return
		}

		var req struct {
			Token string   `json:"token"`
			Args  []string `json:"args"`
		}
		// An empty body is fine for clients sending the token elsewhere.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, "Invalid request body")
			return
		}
		token := extractToken(r)
		if token == "" {
			token = req.Token
		}
		if !s.requireTokenValue(w, token) {
			return
		}
		s.executeAndRespond(w, r, action, req.Args)
	}
}

func (s *Server) handleCommandExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "POST required")
		return
	}

	var req struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
		Token   string   `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body")
		return
	}
	// This endpoint also accepts the token in the request body.
	token := extractToken(r)
	if token == "" {
		token = req.Token
	}
	if !s.requireTokenValue(w, token) {
		return
	}
	if req.Command == "" {
		writeError(w, "Command is required")
		return
	}

	s.executeAndRespond(w, r, req.Command, req.Args)
}

func (s *Server) executeAndRespond(w http.ResponseWriter, r *http.Request, cmd string, args []string) {
	res, err := s.opts.Executor.Execute(r.Context(), cmd, args)
	if err != nil {
		writeError(w, apperrors.GetMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: res.Success, Data: res})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !s.requireToken(w, r) {
		return
	}
	if s.opts.Registry == nil {
		writeData(w, []any{})
		return
	}
	writeData(w, s.opts.Registry.List())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !s.requireToken(w, r) {
		return
	}
	if s.opts.Audit == nil {
		writeData(w, []*storage.AuditEntry{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := s.opts.Audit.Recent(limit)
	if err != nil {
		writeError(w, "Audit log unavailable")
		return
	}
	writeData(w, entries)
}

// handleWebSocket upgrades the connection and starts the client pumps.
// Authentication happens in-band via the auth message; until then the
// socket only answers pings.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	client := newClient(s, conn, r.RemoteAddr)
	s.register(client)

	go client.writePump()
	go client.readPump()
}
