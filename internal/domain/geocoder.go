package domain

import "context"

// CompletionHandler receives the outcome of one asynchronous lookup.
// Exactly one of placemarks and err is non-nil; a lookup without usable
// features yields an empty, non-nil slice.
type CompletionHandler func(placemarks []Placemark, err error)

// Geocoder is the blocking form of a lookup provider, used by caches,
// the HTTP API and the lookup pipeline.
type Geocoder interface {
	// ForwardGeocode converts a free-text address to candidate placemarks.
	ForwardGeocode(ctx context.Context, address string) ([]Placemark, error)

	// ReverseGeocode converts a coordinate to candidate placemarks.
	ReverseGeocode(ctx context.Context, coord Coordinate) ([]Placemark, error)
}
