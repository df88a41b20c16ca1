// Package api exposes the scraping pipelines over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	tiktok "github.com/RavensCloud/tiktok-scout"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Pipelines is the subset of *tiktok.Scraper the server drives.
type Pipelines interface {
	Profile(ctx context.Context, username string) (tiktok.Result, error)
	ProfileWithVideos(ctx context.Context, username string, opts tiktok.Options) (tiktok.Result, error)
	Hashtag(ctx context.Context, tag string, opts tiktok.Options) tiktok.Result
	Search(ctx context.Context, keyword string, opts tiktok.Options) tiktok.Result
	Trending(ctx context.Context, opts tiktok.Options) tiktok.Result
	ForYou(ctx context.Context, opts tiktok.Options) tiktok.Result
}

// Server routes requests to pipelines. Each request runs its own pipeline
// invocation; the server holds no per-request state.
type Server struct {
	pipelines Pipelines
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New returns a Server with all routes registered.
func New(p Pipelines, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pipelines: p, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("GET /api/trending", s.handleTrending)
	s.mux.HandleFunc("GET /api/trending/{keyword}", s.handleTrendingKeyword)
	s.mux.HandleFunc("GET /api/profile/{username}", s.handleProfile)
	s.mux.HandleFunc("GET /api/advanced-profile/{username}", s.handleAdvancedProfile)
	s.mux.HandleFunc("GET /api/hashtag/{hashtag}", s.handleHashtag)
	s.mux.HandleFunc("GET /api/foryou", s.handleForYou)
	return s
}

// Handler returns the routes wrapped with CORS and access logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

type successEnvelope struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Data    any          `json:"data"`
	Meta    *tiktok.Meta `json:"meta,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
}

// advancedProfile is the response body of the advanced-profile route.
type advancedProfile struct {
	Profile   *tiktok.Profile         `json:"profile"`
	TopVideos []tiktok.EnrichedRecord `json:"topVideos"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "TikTok scraper backend running",
	})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.pipelines.Trending(r.Context(), opts))
}

func (s *Server) handleTrendingKeyword(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.pipelines.Search(r.Context(), r.PathValue("keyword"), opts))
}

func (s *Server) handleHashtag(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.pipelines.Hashtag(r.Context(), r.PathValue("hashtag"), opts))
}

func (s *Server) handleForYou(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.pipelines.ForYou(r.Context(), opts))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipelines.Profile(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Count: 1, Data: res.Primary, Meta: &res.Meta})
}

func (s *Server) handleAdvancedProfile(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	res, err := s.pipelines.ProfileWithVideos(r.Context(), r.PathValue("username"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		Success: true,
		Count:   len(res.Items),
		Data:    advancedProfile{Profile: res.Primary, TopVideos: res.Items},
		Meta:    &res.Meta,
	})
}

// options reads the max and enrich query parameters.
func (s *Server) options(w http.ResponseWriter, r *http.Request) (tiktok.Options, bool) {
	var opts tiktok.Options
	q := r.URL.Query()
	if v := q.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: fmt.Sprintf("invalid max %q", v)})
			return opts, false
		}
		opts.Max = n
	}
	if v := q.Get("enrich"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: fmt.Sprintf("invalid enrich %q", v)})
			return opts, false
		}
		opts.Enrich = b
	}
	return opts, true
}

// writeResult renders a multi-entity result. A failed run becomes an error
// response; an empty one is still a success.
func (s *Server) writeResult(w http.ResponseWriter, res tiktok.Result) {
	if res.Meta.Status == tiktok.StatusFailed {
		writeJSON(w, statusForReason(res.Meta.Reason), errorEnvelope{
			Error:  res.Meta.Error,
			Reason: res.Meta.Reason,
		})
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Count: len(res.Items), Data: res.Items, Meta: &res.Meta})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	reason := tiktok.ReasonCode(err)
	writeJSON(w, statusForReason(reason), errorEnvelope{Error: err.Error(), Reason: reason})
}

func statusForReason(reason string) int {
	switch reason {
	case tiktok.ReasonSessionMissing, tiktok.ReasonSessionInvalid:
		return http.StatusUnauthorized
	case tiktok.ReasonNotFound:
		return http.StatusNotFound
	case tiktok.ReasonLayoutChanged:
		return http.StatusBadGateway
	case tiktok.ReasonNavigationFailed:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// ListenAndServe serves h on addr, HTTP/1.1 and cleartext HTTP/2, until ctx
// is done. See Serve.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, grace time.Duration, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return Serve(ctx, ln, h, grace, logger)
}

// Serve serves h on ln until ctx is done. Request contexts derive from ctx,
// so shutdown cancels in-flight pipelines; they get up to grace to close
// their browsers and answer.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, grace time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(h, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
