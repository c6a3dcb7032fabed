package receipt

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-pipeline/internal/logger"
)

// Server handles HTTP requests for uploads, records and store events
type Server struct {
	issuer    *CredentialIssuer
	records   *RecordStore
	pipeline  *Pipeline
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(issuer *CredentialIssuer, records *RecordStore, pipeline *Pipeline, basicAuth BasicAuth) *Server {
	return NewServerWithMux(issuer, records, pipeline, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(issuer *CredentialIssuer, records *RecordStore, pipeline *Pipeline, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		issuer:    issuer,
		records:   records,
		pipeline:  pipeline,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware; methods are the route's CORS methods
func (s *Server) requireAuth(methods string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w, methods)
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipts"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// preflight answers CORS preflight requests for a route
func preflight(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	// The browser client calls this without credentials
	s.mux.HandleFunc("OPTIONS /upload-url", preflight(uploadMethods))
	s.mux.HandleFunc("POST /upload-url", s.handleUploadURL)

	s.mux.HandleFunc("OPTIONS /receipts", preflight(readMethods))
	s.mux.HandleFunc("OPTIONS /receipts/latest", preflight(readMethods))
	s.mux.HandleFunc("GET /receipts/latest", s.requireAuth(readMethods, s.handleLatestReceipt))
	s.mux.HandleFunc("GET /receipts", s.requireAuth(readMethods, s.handleListReceipts))

	// Object-created notifications from S3/MinIO webhook targets
	s.mux.HandleFunc("POST /events", s.requireAuth(eventMethods, s.handleEvents))
}

// requestID tags each request with an ID, reusing the caller's X-Request-ID
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// Handler returns the server's routes wrapped in request-ID middleware
func (s *Server) Handler() http.Handler {
	return requestID(s.mux)
}

// Start serves HTTP on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
