package mapbox

import (
	"context"
	"fmt"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"golang.org/x/time/rate"
)

// Client implements domain.Geocoder on top of a Geocoder. Callers are
// served one at a time, in line with the Geocoder's single in-flight lookup,
// and paced by a rate limiter.
type Client struct {
	geocoder *Geocoder
	limiter  *rate.Limiter
	slot     chan struct{}
}

// NewClient wraps geocoder. ratePerSec <= 0 disables rate limiting.
func NewClient(geocoder *Geocoder, ratePerSec float64) *Client {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Client{
		geocoder: geocoder,
		limiter:  rate.NewLimiter(limit, 1),
		slot:     make(chan struct{}, 1),
	}
}

// ForwardGeocode converts an address to candidate placemarks.
func (c *Client) ForwardGeocode(ctx context.Context, address string) ([]domain.Placemark, error) {
	return c.do(ctx, methodForward, func(done domain.CompletionHandler) bool {
		return c.geocoder.ForwardGeocode(address, done)
	})
}

// ReverseGeocode converts a coordinate to candidate placemarks.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Placemark, error) {
	return c.do(ctx, methodReverse, func(done domain.CompletionHandler) bool {
		return c.geocoder.ReverseGeocode(coord, done)
	})
}

type outcome struct {
	placemarks []domain.Placemark
	err        error
}

func (c *Client) do(ctx context.Context, method string, start func(domain.CompletionHandler) bool) ([]domain.Placemark, error) {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.slot }()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Wait refuses up front when the next token lands after the deadline.
		return nil, fmt.Errorf("%s geocode rate limit: %w", method, context.DeadlineExceeded)
	}

	results := make(chan outcome, 1)
	accepted := start(func(placemarks []domain.Placemark, err error) {
		results <- outcome{placemarks: placemarks, err: err}
	})
	if !accepted {
		return nil, domain.ErrBusy
	}

	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("%s geocode: %w", method, res.err)
		}
		return res.placemarks, nil
	case <-ctx.Done():
		c.geocoder.Cancel()
		return nil, ctx.Err()
	}
}
