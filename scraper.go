package tiktok

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// Scraper runs the scraping pipelines. Each pipeline call launches its own
// browser; the only state shared between calls is the session store and the
// HTTP client used for the server-rendered profile fallback.
type Scraper struct {
	cfg      Config
	logger   *zap.Logger
	launch   Launcher
	sessions *SessionStore

	nav      *Navigator
	loader   *Loader
	enricher *Enricher

	// HTTP client for the SSR profile fallback.
	client       *http.Client
	userAgent    string
	baseURL      string
	profilePacer *pacer
}

// defaultTransport returns an http.Transport tuned for scraping:
// connection pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// New creates a Scraper from cfg. The browser engine is chosen by
// cfg.BrowserEngine; an unknown engine fails at the first pipeline call.
func New(cfg Config) *Scraper {
	jar, _ := cookiejar.New(nil)
	s := &Scraper{
		cfg:      cfg,
		logger:   zap.NewNop(),
		sessions: NewSessionStore(cfg.SessionFile),
		client: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: defaultTransport(),
		},
		userAgent:    cfg.UserAgent,
		baseURL:      cfg.BaseURL,
		profilePacer: newPacer(cfg.ProfileDelay, cfg.ProfileDelay/2),
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if launch, err := LaunchEngine(cfg.BrowserEngine); err == nil {
		s.launch = launch
	} else {
		s.launch = func(context.Context, LaunchOptions) (Browser, error) {
			return nil, fmt.Errorf("%w: %v", ErrBrowserNotReady, err)
		}
	}
	s.wire()
	if cfg.Proxy != "" {
		if err := s.SetProxy(cfg.Proxy); err != nil {
			s.logger.Warn("ignoring proxy for http client", zap.Error(err))
		}
	}
	return s
}

// wire rebuilds the stages that capture the logger.
func (s *Scraper) wire() {
	s.sessions.WithLogger(s.logger)
	s.nav = NewNavigator(s.cfg.NavigationTimeout, s.logger)
	s.nav.HomeURL = s.baseURL
	s.loader = NewLoader(s.logger)
	s.loader.Delay = s.cfg.ScrollDelay
	s.loader.Jitter = s.cfg.ScrollJitter
	detailNav := NewNavigator(s.cfg.EnrichTimeout, s.logger)
	s.enricher = NewEnricher(detailNav, s.cfg.EnrichDelay, s.cfg.EnrichJitter, s.cfg.EnrichTimeout, s.logger)
}

// WithLogger sets the logger used by the scraper and all its stages.
func (s *Scraper) WithLogger(l *zap.Logger) *Scraper {
	s.logger = l
	s.wire()
	return s
}

// WithLauncher replaces the browser engine.
func (s *Scraper) WithLauncher(l Launcher) *Scraper {
	s.launch = l
	return s
}

// WithSessionStore replaces the session store.
func (s *Scraper) WithSessionStore(st *SessionStore) *Scraper {
	s.sessions = st.WithLogger(s.logger)
	return s
}

// WithProfileDelay sets the minimum delay between HTTP profile requests.
func (s *Scraper) WithProfileDelay(d time.Duration) *Scraper {
	s.profilePacer = newPacer(d, 0)
	return s
}

// Config returns the configuration the scraper was built with.
func (s *Scraper) Config() Config { return s.cfg }

// Sessions returns the session store.
func (s *Scraper) Sessions() *SessionStore { return s.sessions }

// SetProxy configures an HTTP/HTTPS or SOCKS5 proxy for the HTTP client.
// Connection pooling and keep-alive settings are preserved.
func (s *Scraper) SetProxy(proxyAddr string) error {
	if proxyAddr == "" {
		s.client.Transport = defaultTransport()
		return nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	base := defaultTransport()

	switch u.Scheme {
	case "http", "https":
		base.Proxy = http.ProxyURL(u)
		s.client.Transport = base
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		dc, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("socks5: context dialer not supported")
		}
		base.DialContext = dc.DialContext
		s.client.Transport = base
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	return nil
}

// doRequest builds and executes an HTTP request with browser-like headers.
func (s *Scraper) doRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", s.cfg.AcceptLanguage)
	req.Header.Set("Referer", s.baseURL+"/")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	}

	return resp, nil
}

// setHTTPCookies copies session cookies into the HTTP client's jar.
func (s *Scraper) setHTTPCookies(cookies []Cookie) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return
	}
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Secure: c.Secure, HttpOnly: c.HTTPOnly}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		httpCookies = append(httpCookies, hc)
	}
	s.client.Jar.SetCookies(u, httpCookies)
}
