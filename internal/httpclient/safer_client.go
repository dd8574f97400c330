// Package httpclient provides the HTTP client used to fetch job postings.
//
// It bounds redirects, response size and scheme, and can refuse to dial
// loopback or private addresses when jobtrail runs as a shared service.
package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/jobtrail/errors"
)

// Options configures a SaferClient. Zero values select the defaults noted per field.
type Options struct {
	Timeout        time.Duration // Whole-request bound. Default: 10s
	UserAgent      string        // Sent on every request when non-empty
	MaxBodyBytes   int64         // Responses beyond this are rejected. Default: 5 MiB
	MaxRedirects   int           // Default: 10
	BlockPrivateIP bool          // Refuse loopback, link-local and RFC 1918 targets
	AllowedSchemes []string      // Default: ["http", "https"]
}

// SaferClient wraps http.Client with scheme, redirect, size and address limits
type SaferClient struct {
	*http.Client
	opts Options
}

// Response is a fully read, size-bounded HTTP response
type Response struct {
	URL         string // Final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// New creates a SaferClient
func New(opts Options) *SaferClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if len(opts.AllowedSchemes) == 0 {
		opts.AllowedSchemes = []string{"http", "https"}
	}

	c := &SaferClient{
		Client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.opts.MaxRedirects {
			return errors.Newf("stopped after %d redirects", c.opts.MaxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if opts.BlockPrivateIP {
		dialer := &net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}
		c.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, a := range addrs {
					if isPrivateAddr(a) {
						return nil, errors.Newf("private IP address blocked: %s", a)
					}
				}
				// Dial the vetted address so a second lookup cannot rebind
				return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return c
}

// validateURL checks scheme, host and address policy before a request is sent
func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.opts.AllowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.opts.AllowedSchemes)
	}

	if u.User != nil {
		// http://evil.com@localhost/ style confusion
		return errors.New("URL contains userinfo")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.opts.BlockPrivateIP {
		if isLocalhost(hostname) {
			return errors.New("localhost access blocked")
		}
		if a, err := netip.ParseAddr(hostname); err == nil && isPrivateAddr(a) {
			return errors.Newf("private IP address blocked: %s", hostname)
		}
	}

	return nil
}

// ValidateURL parses and validates a URL string before creating a request
func (c *SaferClient) ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do executes an HTTP request after validating its URL
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	if c.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return c.Client.Do(req)
}

// Get fetches rawURL and reads at most MaxBodyBytes of the body.
// Non-2xx responses are returned as errors carrying the status code.
func (c *SaferClient) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.8")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("GET %s: status %d", rawURL, resp.StatusCode)
	}

	// Read one byte past the limit to detect oversize bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, errors.Newf("response body exceeds %d bytes", c.opts.MaxBodyBytes)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// isPrivateAddr reports loopback, private, link-local, multicast, unspecified
// and documentation addresses
func isPrivateAddr(a netip.Addr) bool {
	a = a.Unmap()
	if a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() || a.IsMulticast() || a.IsUnspecified() {
		return true
	}
	for _, p := range reservedPrefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("fec0::/10"), // deprecated site-local
	netip.MustParsePrefix("2001:db8::/32"),
}

// isLocalhost checks for localhost variants
func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	return hostname == "localhost" ||
		hostname == "localhost.localdomain" ||
		strings.HasSuffix(hostname, ".localhost")
}
