package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Logger receives server diagnostics. The journal satisfies it via a small
// adapter in the caller.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// ServerSettings configures the loopback callback listener.
type ServerSettings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Normalize fills unset fields with defaults.
func (s *ServerSettings) Normalize() {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 5 * time.Second
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 5 * time.Second
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = 30 * time.Second
	}
}

// Address returns the host:port pair to bind.
func (s ServerSettings) Address() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// Result is delivered once per completed callback round trip.
type Result struct {
	State   State
	Address string
	Err     error
}

// CallbackServer hosts the redirect target for the OAuth handshake. The
// provider returns the id_token in the URL fragment, which never reaches an
// HTTP server, so the callback page forwards the fragment parameters to a
// completion endpoint before the handshake is judged.
type CallbackServer struct {
	settings  ServerSettings
	handshake *Handshake
	logger    Logger
	results   chan Result

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// ServerOption customizes callback server construction.
type ServerOption func(*CallbackServer)

// WithServerLogger overrides the default no-op logger.
func WithServerLogger(l Logger) ServerOption {
	return func(s *CallbackServer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewCallbackServer prepares a callback server for the given handshake.
func NewCallbackServer(settings ServerSettings, handshake *Handshake, opts ...ServerOption) *CallbackServer {
	settings.Normalize()
	s := &CallbackServer{
		settings:  settings,
		handshake: handshake,
		logger:    nopLogger{},
		results:   make(chan Result, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Results yields one Result per processed callback.
func (s *CallbackServer) Results() <-chan Result {
	return s.results
}

// Start binds the TCP listener and begins serving the callback routes.
func (s *CallbackServer) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("auth: callback server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("auth: callback server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("auth: listen %s: %w", addr, err)
	}
	s.listener = listener
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.HandleFunc("/auth/complete", s.handleComplete)
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("auth: serve error: %v", err)
		}
	}()
	s.logger.Printf("auth: callback server listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleCallback serves the landing page. The id_token arrives in the URL
// fragment, so a scrap of inline script reloads the page with the fragment
// parameters promoted to a query string on /auth/complete.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, callbackPage)
}

func (s *CallbackServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	params := r.URL.Query()
	token := params.Get("id_token")
	err := s.handshake.CompleteFromCallback(token, params)
	result := Result{State: s.handshake.State(), Err: err}
	if err == nil {
		address, derr := DeriveAddress(token)
		if derr != nil {
			s.logger.Printf("auth: derive address: %v", derr)
		}
		result.Address = address
	}
	select {
	case s.results <- result:
	default:
		s.logger.Printf("auth: dropping callback result, channel full")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		s.logger.Printf("auth: callback failed: %v", err)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, failurePage)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, successPage)
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Signing in</title></head>
<body>
<p>Completing sign-in&hellip;</p>
<script>
var hash = window.location.hash;
if (hash && hash.length > 1) {
  window.location.replace("/auth/complete?" + hash.substring(1));
} else {
  window.location.replace("/auth/complete");
}
</script>
</body>
</html>
`

const successPage = `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<p>Sign-in complete. You can close this tab and return to the terminal.</p>
</body>
</html>
`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<p>Sign-in failed. Return to the terminal and try again.</p>
</body>
</html>
`
