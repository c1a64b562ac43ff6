package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/jonboulle/clockwork"
)

// LookupTransformer implements Transformer by resolving each request against
// a geocoder. Only unreadable requests produce an error; failed lookups are
// published with status "failed".
type LookupTransformer struct {
	geocoder domain.Geocoder
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewTransformer creates a LookupTransformer.
func NewTransformer(geocoder domain.Geocoder, clock clockwork.Clock, logger *slog.Logger) *LookupTransformer {
	return &LookupTransformer{
		geocoder: geocoder,
		clock:    clock,
		logger:   logger,
	}
}

func (t *LookupTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseLookupRequest(raw.Value)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	result := domain.Resolve(ctx, req, t.geocoder, t.logger)
	result.ResolvedAt = t.clock.Now().UTC()

	return domain.SerializeLookupResult(result)
}
