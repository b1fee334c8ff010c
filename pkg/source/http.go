package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

// HTTPSource streams the body of an HTTP GET.
type HTTPSource struct {
	url         string
	chunkSize   int
	readTimeout time.Duration

	transport *http.Transport
	body      io.ReadCloser
	cancel    context.CancelFunc
	timedOut  atomic.Bool

	closeOnce sync.Once
}

// OpenHTTP issues the request and returns once response headers arrived.
// OpenTimeout covers the connection and the headers; ReadTimeout then
// bounds every Read. When TargetBytes is set only that prefix is requested.
func OpenHTTP(ctx context.Context, config Config) (*HTTPSource, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: config.OpenTimeout}).DialContext,
		TLSHandshakeTimeout:   config.OpenTimeout,
		ResponseHeaderTimeout: config.OpenTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}, //nolint:gosec // opt-in
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, config.URL, nil)
	if err != nil {
		cancel()
		return nil, errors.TransportError("open", config.URL, err)
	}
	if config.TargetBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", config.TargetBytes-1))
	}

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		cancel()
		transport.CloseIdleConnections()
		return nil, errors.TransportError("open", config.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		transport.CloseIdleConnections()
		return nil, errors.TransportError("open", config.URL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	logger.DebugCtx(ctx, "http source opened",
		"url", config.URL,
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)

	return &HTTPSource{
		url:         config.URL,
		chunkSize:   config.ChunkSize,
		readTimeout: config.ReadTimeout,
		transport:   transport,
		body:        resp.Body,
		cancel:      cancel,
	}, nil
}

// Read reads from the response body. A read that stalls longer than the
// read timeout aborts the request and fails with errors.ErrTimeout.
func (s *HTTPSource) Read(p []byte) (int, error) {
	if s.readTimeout > 0 {
		timer := time.AfterFunc(s.readTimeout, func() {
			s.timedOut.Store(true)
			s.cancel()
		})
		defer timer.Stop()
	}

	n, err := s.body.Read(p)
	if err != nil && err != io.EOF && s.timedOut.Load() {
		err = fmt.Errorf("%w: no data within %v", errors.ErrTimeout, s.readTimeout)
	}
	return n, err
}

// Close releases the connection.
func (s *HTTPSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		s.cancel()
		s.transport.CloseIdleConnections()
	})
	return err
}

// ChunkSize returns the preferred read size.
func (s *HTTPSource) ChunkSize() int {
	return s.chunkSize
}

// URL returns the requested URL.
func (s *HTTPSource) URL() string {
	return s.url
}
