package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// AddressDetails holds the structured address components of a placemark.
// The Mapbox places feed does not break results down this way, so every
// field is left at its zero value.
type AddressDetails struct {
	Country               string
	ISOCountryCode        string
	PostalCode            string
	AdministrativeArea    string
	SubAdministrativeArea string
	Locality              string
	SubLocality           string
	Thoroughfare          string
	SubThoroughfare       string
	InlandWater           string
	Ocean                 string
	AreasOfInterest       []string
}

// Placemark is one validated geocoding result. It is immutable once built.
type Placemark struct {
	coordinate Coordinate
	name       string
}

// NewPlacemark builds a placemark from values that were already validated,
// e.g. results read back from a cache.
func NewPlacemark(coord Coordinate, name string) Placemark {
	return Placemark{coordinate: coord, name: name}
}

// Coordinate returns the placemark location.
func (p Placemark) Coordinate() Coordinate { return p.coordinate }

// Name returns the human-readable place name.
func (p Placemark) Name() string { return p.name }

// Details returns the structured address, which is always empty.
func (p Placemark) Details() AddressDetails { return AddressDetails{} }

// MarshalJSON renders the placemark for API and pipeline output.
func (p Placemark) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		PlaceName string  `json:"place_name"`
	}{p.coordinate.Latitude, p.coordinate.Longitude, p.name})
}

// featureJSON mirrors the parts of a GeoJSON feature a placemark needs.
// Fields stay raw so each can be type-checked on its own.
type featureJSON struct {
	Geometry  json.RawMessage `json:"geometry"`
	PlaceName json.RawMessage `json:"place_name"`
}

type geometryJSON struct {
	Type        json.RawMessage `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// PlacemarkFromFeature builds a placemark from one feature of a Mapbox
// response. It returns false unless the feature has a Point geometry with a
// [lon, lat, ...] coordinate array and a string place_name.
func PlacemarkFromFeature(raw json.RawMessage) (Placemark, bool) {
	var f featureJSON
	if !isObject(raw) || json.Unmarshal(raw, &f) != nil {
		return Placemark{}, false
	}

	if !isObject(f.Geometry) {
		return Placemark{}, false
	}
	var g geometryJSON
	if err := json.Unmarshal(f.Geometry, &g); err != nil {
		return Placemark{}, false
	}

	var geomType string
	if err := json.Unmarshal(g.Type, &geomType); err != nil || geomType != "Point" {
		return Placemark{}, false
	}

	if !isArray(g.Coordinates) {
		return Placemark{}, false
	}
	var coords []json.RawMessage
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil || len(coords) < 2 {
		return Placemark{}, false
	}
	lon, ok := toFloat(coords[0])
	if !ok {
		return Placemark{}, false
	}
	lat, ok := toFloat(coords[1])
	if !ok {
		return Placemark{}, false
	}

	if !isString(f.PlaceName) {
		return Placemark{}, false
	}
	var name string
	if err := json.Unmarshal(f.PlaceName, &name); err != nil {
		return Placemark{}, false
	}

	return NewPlacemark(Coordinate{Latitude: lat, Longitude: lon}, name), true
}

// toFloat accepts a JSON number or a string holding one.
func toFloat(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && !isNull(raw) {
		return n, true
	}
	var s string
	if !isString(raw) || json.Unmarshal(raw, &s) != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isObject(raw json.RawMessage) bool { return firstByte(raw) == '{' }
func isArray(raw json.RawMessage) bool  { return firstByte(raw) == '[' }
func isString(raw json.RawMessage) bool { return firstByte(raw) == '"' }
func isNull(raw json.RawMessage) bool   { return firstByte(raw) == 'n' }
