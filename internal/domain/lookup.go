package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Lookup kinds and statuses recorded on pipeline results.
const (
	KindForward = "forward"
	KindReverse = "reverse"

	StatusResolved = "resolved"
	StatusEmpty    = "empty"
	StatusFailed   = "failed"
)

// LookupRequest is one geocoding job read from the source topic.
// Exactly one of Address and Coordinate is set.
type LookupRequest struct {
	ID         string      `json:"id"`
	Address    string      `json:"address,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// Kind reports whether the request is a forward or reverse lookup.
func (r LookupRequest) Kind() string {
	if r.Coordinate != nil {
		return KindReverse
	}
	return KindForward
}

// LookupResult is the outcome of a LookupRequest.
type LookupResult struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Address    string      `json:"address,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	ErrorCode  ErrorCode   `json:"error_code,omitempty"`
	Placemarks []Placemark `json:"placemarks"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// ParseLookupRequest decodes and validates a lookup request payload.
func ParseLookupRequest(data []byte) (LookupRequest, error) {
	var req LookupRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return LookupRequest{}, fmt.Errorf("unmarshal lookup request: %w", err)
	}
	req.Address = strings.TrimSpace(req.Address)

	switch {
	case req.ID == "":
		return LookupRequest{}, errors.New("lookup request: missing id")
	case req.Address == "" && req.Coordinate == nil:
		return LookupRequest{}, errors.New("lookup request: address or coordinate is required")
	case req.Address != "" && req.Coordinate != nil:
		return LookupRequest{}, errors.New("lookup request: address and coordinate are mutually exclusive")
	case req.Coordinate != nil && !req.Coordinate.Valid():
		return LookupRequest{}, fmt.Errorf("lookup request: coordinate %s out of range", req.Coordinate)
	}
	return req, nil
}

// Resolve runs a lookup request against geocoder. Failures are recorded on
// the result rather than returned, so one bad lookup never blocks the rest.
func Resolve(ctx context.Context, req LookupRequest, geocoder Geocoder, logger *slog.Logger) LookupResult {
	result := LookupResult{
		ID:         req.ID,
		Kind:       req.Kind(),
		Address:    req.Address,
		Coordinate: req.Coordinate,
	}

	var (
		placemarks []Placemark
		err        error
	)
	if req.Coordinate != nil {
		placemarks, err = geocoder.ReverseGeocode(ctx, *req.Coordinate)
	} else {
		placemarks, err = geocoder.ForwardGeocode(ctx, req.Address)
	}

	if err != nil {
		logger.Warn("lookup failed",
			"lookup_id", req.ID,
			"kind", result.Kind,
			"error", err,
		)
		result.Status = StatusFailed
		result.Error = err.Error()
		result.ErrorCode, _ = CodeOf(err)
		result.Placemarks = []Placemark{}
		return result
	}

	result.Placemarks = placemarks
	if len(placemarks) == 0 {
		result.Status = StatusEmpty
	} else {
		result.Status = StatusResolved
	}
	return result
}

// SerializeLookupResult marshals a result into an OutputEvent keyed by the
// request ID.
func SerializeLookupResult(result LookupResult) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize lookup result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.ID),
		Value: data,
		Headers: map[string]string{
			"lookup_kind": result.Kind,
			"status":      result.Status,
		},
	}, nil
}
