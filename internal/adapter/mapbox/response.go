package mapbox

import (
	"encoding/json"
	"errors"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
)

var errNotObject = errors.New("top-level value is not an object")

// parseFeatures converts a buffered response body into placemarks. Only a
// body that is not a JSON object is an error; a missing or malformed
// "features" member reads as empty, and invalid features are skipped.
func parseFeatures(body []byte) ([]domain.Placemark, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &domain.ParseError{Err: err}
	}
	if doc == nil {
		return nil, &domain.ParseError{Err: errNotObject}
	}

	var features []json.RawMessage
	if raw, ok := doc["features"]; ok {
		if err := json.Unmarshal(raw, &features); err != nil {
			features = nil
		}
	}

	placemarks := make([]domain.Placemark, 0, len(features))
	for _, f := range features {
		if p, ok := domain.PlacemarkFromFeature(f); ok {
			placemarks = append(placemarks, p)
		}
	}
	return placemarks, nil
}
