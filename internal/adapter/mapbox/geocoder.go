package mapbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	outcomeSuccess   = "success"
	outcomeEmpty     = "empty"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
	outcomeDropped   = "dropped"

	chunkSize = 32 << 10
)

// Geocoder runs Mapbox lookups one at a time and reports each outcome
// through a completion handler. Starting a lookup while another is in flight
// is a silent no-op. Safe for use from multiple goroutines.
type Geocoder struct {
	token      string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	active *operation
}

// operation is the state of one in-flight lookup. Only the goroutine
// driving the transport touches buf; ownership is decided by Geocoder.active.
type operation struct {
	method     string
	url        string
	completion domain.CompletionHandler
	cancel     context.CancelFunc
	started    time.Time
	buf        bytes.Buffer
}

// Option customizes a Geocoder.
type Option func(*Geocoder)

// WithBaseURL points the geocoder at a different Places endpoint.
func WithBaseURL(baseURL string) Option {
	return func(g *Geocoder) { g.baseURL = baseURL }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Geocoder) { g.httpClient = c }
}

// WithClock sets the time source used for request duration metrics.
func WithClock(c clockwork.Clock) Option {
	return func(g *Geocoder) { g.clock = c }
}

// NewGeocoder creates a Mapbox geocoder authenticated with token.
func NewGeocoder(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Geocoder {
	g := &Geocoder{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ReverseGeocode looks up the places at coord. It reports whether the lookup
// was started; when another lookup is in flight it returns false and
// completion is never called.
func (g *Geocoder) ReverseGeocode(coord domain.Coordinate, completion domain.CompletionHandler) bool {
	return g.start(methodReverse, g.reverseURL(coord), completion)
}

// ForwardGeocode looks up the places matching address. It reports whether the
// lookup was started; when another lookup is in flight it returns false and
// completion is never called.
func (g *Geocoder) ForwardGeocode(address string, completion domain.CompletionHandler) bool {
	return g.start(methodForward, g.forwardURL(address), completion)
}

// IsRequesting reports whether a lookup is in flight.
func (g *Geocoder) IsRequesting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}

// Cancel aborts the in-flight lookup, if any. Its completion handler is not
// called, even if part of the response has already arrived.
func (g *Geocoder) Cancel() {
	g.mu.Lock()
	op := g.active
	if op == nil {
		g.mu.Unlock()
		return
	}
	g.active = nil
	g.metrics.GeocodeInFlight.Set(0)
	g.mu.Unlock()

	op.cancel()
	g.metrics.GeocodeRequests.WithLabelValues(op.method, outcomeCancelled).Inc()
	g.logger.Debug("geocode lookup cancelled", "method", op.method)
}

func (g *Geocoder) start(method, rawURL string, completion domain.CompletionHandler) bool {
	g.mu.Lock()
	if g.active != nil {
		g.mu.Unlock()
		g.metrics.GeocodeRequests.WithLabelValues(method, outcomeDropped).Inc()
		g.logger.Debug("geocode lookup dropped, another lookup is in flight", "method", method)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	op := &operation{
		method:     method,
		url:        rawURL,
		completion: completion,
		cancel:     cancel,
		started:    g.clock.Now(),
	}
	g.active = op
	g.metrics.GeocodeInFlight.Set(1)
	g.mu.Unlock()

	go g.run(ctx, op)
	return true
}

// run drives the transport for op and delivers its events in order:
// response headers, zero or more body chunks, then finish or failure.
func (g *Geocoder) run(ctx context.Context, op *operation) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, op.url, nil)
	if err != nil {
		g.didFail(op, fmt.Errorf("create request: %w", err))
		return
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.didFail(op, err)
		return
	}
	defer resp.Body.Close()

	if !g.didReceiveResponse(op, resp.StatusCode) {
		return
	}

	chunk := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 && !g.didReceiveData(op, chunk[:n]) {
			return
		}
		if errors.Is(err, io.EOF) {
			g.didFinishLoading(op)
			return
		}
		if err != nil {
			g.didFail(op, err)
			return
		}
	}
}

// owns reports whether op is still the active lookup.
func (g *Geocoder) owns(op *operation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active == op
}

func (g *Geocoder) didReceiveResponse(op *operation, statusCode int) bool {
	if statusCode != http.StatusOK {
		op.cancel()
		g.complete(op, nil, &domain.HTTPError{StatusCode: statusCode})
		return false
	}
	if !g.owns(op) {
		return false
	}
	op.buf.Reset()
	return true
}

func (g *Geocoder) didReceiveData(op *operation, data []byte) bool {
	if !g.owns(op) {
		return false
	}
	op.buf.Write(data)
	return true
}

func (g *Geocoder) didFinishLoading(op *operation) {
	placemarks, err := parseFeatures(op.buf.Bytes())
	g.complete(op, placemarks, err)
}

func (g *Geocoder) didFail(op *operation, err error) {
	g.complete(op, nil, &domain.ConnectionError{Err: err})
}

// complete moves the geocoder back to idle and then calls the completion
// handler, so the handler may start the next lookup. It does nothing if op
// was cancelled.
func (g *Geocoder) complete(op *operation, placemarks []domain.Placemark, err error) {
	g.mu.Lock()
	if g.active != op {
		g.mu.Unlock()
		return
	}
	g.active = nil
	g.metrics.GeocodeInFlight.Set(0)
	g.mu.Unlock()

	op.cancel()
	op.buf = bytes.Buffer{}
	g.metrics.GeocodeAPIDuration.WithLabelValues(op.method).Observe(g.clock.Since(op.started).Seconds())

	switch {
	case err != nil:
		g.metrics.GeocodeRequests.WithLabelValues(op.method, outcomeError).Inc()
		g.logger.Warn("geocode lookup failed", "method", op.method, "error", err)
	case len(placemarks) == 0:
		g.metrics.GeocodeRequests.WithLabelValues(op.method, outcomeEmpty).Inc()
		g.logger.Debug("geocode lookup returned no placemarks", "method", op.method)
	default:
		g.metrics.GeocodeRequests.WithLabelValues(op.method, outcomeSuccess).Inc()
		g.logger.Debug("geocode lookup complete", "method", op.method, "results", len(placemarks))
	}

	if op.completion != nil {
		op.completion(placemarks, err)
	}
}
