// Package oauth runs the browser-based login flow: a localhost callback
// server that receives the Meta redirect and a login orchestrator that opens
// the authorization URL and waits for completion.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/armavita/meta-ads-mcp/internal/auth"
	"github.com/armavita/meta-ads-mcp/internal/config"
	"github.com/armavita/meta-ads-mcp/internal/logger"
)

const (
	// BasePort is the first port probed for the callback listener.
	BasePort = 8080

	// portAttempts bounds the linear port probe.
	portAttempts = 10

	// ServerLifetime force-stops the callback server even when the browser
	// flow is abandoned.
	ServerLifetime = 180 * time.Second
)

// ErrCallbackDisabled is returned when the callback server has been turned
// off via META_ADS_DISABLE_CALLBACK_SERVER.
var ErrCallbackDisabled = fmt.Errorf("callback server is disabled via META_ADS_DISABLE_CALLBACK_SERVER")

// Callback state values. Transitions are monotonic within one login
// attempt: pending, exchanging, then success or error.
const (
	StatusPending    = "pending"
	StatusExchanging = "exchanging"
	StatusSuccess    = "success"
	StatusError      = "error"
)

// State is the snapshot of the current login attempt, served on /token and
// updated by the callback handler. Readers always get a copy.
type State struct {
	Status      string `json:"status"`
	AuthCode    string `json:"auth_code,omitempty"`
	Token       string `json:"token,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Result is delivered on the server's result channel when the callback
// handler finishes the exchange.
type Result struct {
	Token *auth.TokenInfo
	Err   error
}

// CallbackServer receives the OAuth redirect and performs the token
// exchange inline in the request handler. One login attempt is in flight at
// a time; only one callback request is expected per attempt.
type CallbackServer struct {
	cfg     *config.Config
	manager *auth.Manager

	mu            sync.Mutex
	server        *http.Server
	listener      net.Listener
	port          int
	expectedState string
	state         State
	watchdog      *time.Timer
	results       chan Result
}

// NewCallbackServer creates a callback server. Start must be called before
// the redirect URI is usable.
func NewCallbackServer(cfg *config.Config, manager *auth.Manager) *CallbackServer {
	return &CallbackServer{
		cfg:     cfg,
		manager: manager,
		state:   State{Status: StatusPending, Timestamp: time.Now().Unix()},
		results: make(chan Result, 1),
	}
}

// Start binds the listener and begins serving. Calling Start while the
// server is already running returns the existing port. The port is chosen
// by probing upward from BasePort; exhaustion is a hard error.
func (s *CallbackServer) Start() (int, error) {
	if s.cfg.DisableCallbackServer {
		return 0, ErrCallbackDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.port, nil
	}

	var listener net.Listener
	var port int
	var err error
	for i := 0; i < portAttempts; i++ {
		port = BasePort + i
		listener, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			break
		}
	}
	if listener == nil {
		return 0, fmt.Errorf("no available callback port in range %d-%d: %w",
			BasePort, BasePort+portAttempts-1, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	mux.HandleFunc("/token", s.handleToken)

	s.listener = listener
	s.port = port
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	server := s.server
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Errorf("callback server: %v", err)
		}
	}()

	s.watchdog = time.AfterFunc(ServerLifetime, func() {
		logger.Warnf("callback server lifetime expired, shutting down")
		s.Stop()
	})

	logger.Infof("callback server listening on port %d", port)
	return port, nil
}

// Reset prepares the server for a new login attempt: the state snapshot
// goes back to pending and the expected state nonce is replaced.
func (s *CallbackServer) Reset(expectedState string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedState = expectedState
	s.state = State{Status: StatusPending, Timestamp: time.Now().Unix()}
	// Drain a leftover result from an abandoned attempt.
	select {
	case <-s.results:
	default:
	}
}

// Stop shuts the server down and clears all handle state. Safe to call
// repeatedly, and safe to call from inside a request handler: the actual
// shutdown is dispatched asynchronously so the handler's own connection can
// drain.
func (s *CallbackServer) Stop() {
	s.mu.Lock()
	server := s.server
	watchdog := s.watchdog
	s.server = nil
	s.listener = nil
	s.watchdog = nil
	s.port = 0
	s.mu.Unlock()

	if watchdog != nil {
		watchdog.Stop()
	}
	if server == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
		}
	}()
}

// Running reports whether the server currently holds a listener.
func (s *CallbackServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Port returns the bound port, zero before Start.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RedirectURI returns the OAuth redirect target for the bound port.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.Port())
}

// Results returns the channel on which the callback handler delivers the
// outcome of the exchange.
func (s *CallbackServer) Results() <-chan Result {
	return s.results
}

// StateSnapshot returns a copy of the current callback state.
func (s *CallbackServer) StateSnapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CallbackServer) setState(update func(*State)) {
	s.mu.Lock()
	update(&s.state)
	s.state.Timestamp = time.Now().Unix()
	s.mu.Unlock()
}

func (s *CallbackServer) deliver(result Result) {
	select {
	case s.results <- result:
	default:
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		desc := query.Get("error_description")
		s.failCallback(w, fmt.Errorf("authorization denied: %s (%s)", errParam, desc))
		return
	}

	s.mu.Lock()
	expected := s.expectedState
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", s.port)
	s.mu.Unlock()

	if state := query.Get("state"); expected != "" && state != expected {
		s.failCallback(w, fmt.Errorf("state mismatch in OAuth callback"))
		return
	}

	code := query.Get("code")
	if code == "" {
		s.failCallback(w, fmt.Errorf("no authorization code in callback"))
		return
	}

	s.setState(func(st *State) {
		st.Status = StatusExchanging
		st.AuthCode = code
		st.RedirectURI = redirectURI
	})

	// The exchange runs inline; this is the only request in flight.
	completion := s.manager.CompleteOAuth(r.Context(), code, redirectURI, true)
	if !completion.Success {
		s.failCallback(w, fmt.Errorf("token exchange failed: %s", completion.ErrorCode))
		return
	}

	s.setState(func(st *State) {
		st.Status = StatusSuccess
		st.Token = completion.Token.AccessToken
		st.ExpiresIn = completion.Token.ExpiresIn
		st.UserID = completion.Token.UserID
	})
	s.deliver(Result{Token: completion.Token})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackHTML("Login successful", "You are authenticated with Meta. You can close this window."))
}

func (s *CallbackServer) failCallback(w http.ResponseWriter, err error) {
	logger.Errorf("oauth callback: %v", err)
	s.setState(func(st *State) {
		st.Status = StatusError
		st.Error = err.Error()
	})
	s.deliver(Result{Err: err})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackHTML("Login failed", html.EscapeString(err.Error())))
}

// handleToken serves the state snapshot for out-of-band polling.
func (s *CallbackServer) handleToken(w http.ResponseWriter, r *http.Request) {
	snapshot := s.StateSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		http.Error(w, "encoding state", http.StatusInternalServerError)
	}
}

func callbackHTML(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Meta Ads MCP</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #F0F2F5;
        }
        .container {
            text-align: center;
            background: white;
            padding: 48px 64px;
            border-radius: 12px;
            box-shadow: 0 2px 12px rgba(0,0,0,0.1);
        }
        h1 { color: #1C2B33; margin: 0 0 8px 0; font-size: 22px; }
        p { color: #65676B; margin: 0; font-size: 15px; }
    </style>
    <script>setTimeout(function() { window.close(); }, 4000);</script>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>`, title, message)
}
