package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// Target is a named backend service.
type Target struct {
	Name string
	URL  string
	// UnavailableMessage is returned with a 503 when the target cannot be reached.
	UnavailableMessage string
}

type ProxyOptions struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
}

func NewTransport(opts ProxyOptions) *http.Transport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = 30 * time.Second
	}

	dial := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
	}
}

type forwardResultKey struct{}

type forwardResult struct {
	err error
}

// Forwarder relays requests to one target. It makes a single attempt and
// relays the backend response verbatim.
type Forwarder struct {
	target Target
	url    *url.URL
	proxy  *httputil.ReverseProxy
}

func NewForwarder(target Target, transport http.RoundTripper) (*Forwarder, error) {
	u, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("target %s: invalid url: %w", target.Name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("target %s: url %q must be absolute", target.Name, target.URL)
	}
	if target.UnavailableMessage == "" {
		target.UnavailableMessage = "Service unavailable"
	}

	f := &Forwarder{target: target, url: u}
	f.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		Transport:     transport,
		FlushInterval: 200 * time.Millisecond,
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		// Nothing is written here; Forward reports the error so the caller can
		// pick between a 503 and a silent close.
		ErrorHandler: func(_ http.ResponseWriter, r *http.Request, err error) {
			if res, ok := r.Context().Value(forwardResultKey{}).(*forwardResult); ok {
				res.err = err
			}
		},
	}
	return f, nil
}

func (f *Forwarder) Target() Target {
	return f.target
}

// Forward sends r to the target with its path replaced by path. A non-nil
// error means no response has been written.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, path string) error {
	res := &forwardResult{}
	out := r.Clone(context.WithValue(r.Context(), forwardResultKey{}, res))
	out.URL.Path = path
	out.URL.RawPath = ""

	f.proxy.ServeHTTP(w, out)

	if res.err != nil {
		return fmt.Errorf("forward to %s: %w", f.target.Name, res.err)
	}
	return nil
}
