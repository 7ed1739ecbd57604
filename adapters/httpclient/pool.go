// Package httpclient implements the upstream client factory: one pooled
// *http.Client per unique (ssl_verify, connect_timeout, total_timeout)
// tuple, shared by every route whose tuple matches.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/artpar/llmproxy/domain/route"
	"github.com/artpar/llmproxy/ports"
)

// idleReadTimeout bounds the gap between bytes on a streaming body; it is
// separate from the tuple's total_timeout, which only bounds
// time-to-last-response-header.
const idleReadTimeout = 120 * time.Second

const maxBufferedBodyBytes = 50 << 20 // 50MB safety cap on buffered reads

var hopByHopResponseHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// entry bundles the buffered and streaming *http.Client built for one
// tuple: buffered requests get the tuple's total_timeout as the client
// timeout; streaming requests get that same total_timeout applied only to
// connect-through-headers via their transport's ResponseHeaderTimeout, so
// the SSE body itself is never subject to it (the idle-read timeout below
// governs the body instead), matching the teacher's split between a timed
// buffered client and an untimed streaming one.
type entry struct {
	buffered  *http.Client
	streaming *http.Client
}

// Pool is the tuple-keyed *http.Client factory/cache.
type Pool struct {
	mu      sync.Mutex
	clients map[route.ClientTuple]*entry
}

// NewPool returns an empty pool; clients are built lazily on first use.
func NewPool() *Pool {
	return &Pool{clients: make(map[route.ClientTuple]*entry)}
}

func (p *Pool) get(tuple route.ClientTuple) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.clients[tuple]; ok {
		return e
	}
	e := build(tuple)
	p.clients[tuple] = e
	return e
}

func build(tuple route.ClientTuple) *entry {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if !tuple.SSLVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	dialer := &net.Dialer{Timeout: tuple.ConnectTimeout}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	streamingTransport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // SSE must not be transparently gzipped mid-stream
		// Bounds connect-through-headers the same way total_timeout bounds
		// a buffered request's Client.Timeout, without touching the body
		// read afterward (idleReadTimeout governs that instead).
		ResponseHeaderTimeout: tuple.TotalTimeout,
	}

	return &entry{
		buffered:  &http.Client{Transport: transport, Timeout: tuple.TotalTimeout},
		streaming: &http.Client{Transport: streamingTransport}, // no client timeout; idleReadTimeout governs reads
	}
}

// Client is the ports.UpstreamClient implementation backed by Pool.
type Client struct {
	pool *Pool
}

// NewClient wraps pool as a ports.UpstreamClient.
func NewClient(pool *Pool) *Client {
	return &Client{pool: pool}
}

var _ ports.UpstreamClient = (*Client)(nil)

func (c *Client) buildRequest(ctx context.Context, r *route.ModelRoute, method, path string, headers map[string]string, body []byte) (*http.Request, error) {
	base, err := url.Parse(r.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	target := base.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func filterResponseHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if hopByHopResponseHeaders[strings.ToLower(k)] {
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Do sends a buffered request using the route's pooled client.
func (c *Client) Do(ctx context.Context, r *route.ModelRoute, method, path string, headers map[string]string, body []byte) (ports.UpstreamResponse, error) {
	req, err := c.buildRequest(ctx, r, method, path, headers, body)
	if err != nil {
		return ports.UpstreamResponse{}, err
	}

	e := c.pool.get(r.ClientTuple(r.Timeout))
	resp, err := e.buffered.Do(req)
	if err != nil {
		return ports.UpstreamResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBodyBytes))
	if err != nil {
		return ports.UpstreamResponse{}, err
	}

	return ports.UpstreamResponse{
		Status:  resp.StatusCode,
		Headers: filterResponseHeaders(resp.Header),
		Body:    respBody,
	}, nil
}

// DoStreaming sends a request whose response body is returned unbuffered.
// The streaming client carries no http.Client.Timeout (that would also cut
// off the SSE body); instead its transport's ResponseHeaderTimeout bounds
// only connect-through-headers to the tuple's total_timeout, leaving the
// body read ungoverned by it. Once headers arrive, idleReadTimeout governs
// the per-read gap on the body instead.
func (c *Client) DoStreaming(ctx context.Context, r *route.ModelRoute, method, path string, headers map[string]string, body []byte) (ports.StreamingResponse, error) {
	req, err := c.buildRequest(ctx, r, method, path, headers, body)
	if err != nil {
		return ports.StreamingResponse{}, err
	}

	e := c.pool.get(r.ClientTuple(r.Timeout))
	resp, err := e.streaming.Do(req)
	if err != nil {
		return ports.StreamingResponse{}, err
	}

	return ports.StreamingResponse{
		Status:  resp.StatusCode,
		Headers: filterResponseHeaders(resp.Header),
		Body:    newIdleTimeoutReader(resp.Body, idleReadTimeout),
	}, nil
}

// CloseIdle closes idle connections on every pooled client; called during
// shutdown.
func (p *Pool) CloseIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.clients {
		e.buffered.CloseIdleConnections()
		e.streaming.CloseIdleConnections()
	}
}
