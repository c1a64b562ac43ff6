package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sanFrancisco = `{"geometry":{"type":"Point","coordinates":[-122.42,37.77]},"place_name":"San Francisco, California, United States"}`

func TestPlacemarkFromFeature_Valid(t *testing.T) {
	p, ok := PlacemarkFromFeature(json.RawMessage(sanFrancisco))
	require.True(t, ok)

	assert.Equal(t, "San Francisco, California, United States", p.Name())
	assert.Equal(t, Coordinate{Latitude: 37.77, Longitude: -122.42}, p.Coordinate())
}

func TestPlacemarkFromFeature_DetailsAlwaysEmpty(t *testing.T) {
	p, ok := PlacemarkFromFeature(json.RawMessage(sanFrancisco))
	require.True(t, ok)

	if diff := cmp.Diff(AddressDetails{}, p.Details()); diff != "" {
		t.Fatalf("details should be empty (-want +got):\n%s", diff)
	}
}

func TestPlacemarkFromFeature_ExtraCoordinatesIgnored(t *testing.T) {
	p, ok := PlacemarkFromFeature(json.RawMessage(
		`{"geometry":{"type":"Point","coordinates":[2.35,48.85,35]},"place_name":"Paris"}`))
	require.True(t, ok)
	assert.Equal(t, Coordinate{Latitude: 48.85, Longitude: 2.35}, p.Coordinate())
}

func TestPlacemarkFromFeature_NumericStringCoordinates(t *testing.T) {
	p, ok := PlacemarkFromFeature(json.RawMessage(
		`{"geometry":{"type":"Point","coordinates":["-97.7431","30.2672"]},"place_name":"Austin"}`))
	require.True(t, ok)
	assert.Equal(t, Coordinate{Latitude: 30.2672, Longitude: -97.7431}, p.Coordinate())
}

func TestPlacemarkFromFeature_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		feature string
	}{
		{"not an object", `["geometry"]`},
		{"null feature", `null`},
		{"missing geometry", `{"place_name":"Nowhere"}`},
		{"geometry not an object", `{"geometry":"Point","place_name":"Nowhere"}`},
		{"polygon geometry", `{"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"place_name":"Block"}`},
		{"lowercase point", `{"geometry":{"type":"point","coordinates":[1,2]},"place_name":"x"}`},
		{"type not a string", `{"geometry":{"type":1,"coordinates":[1,2]},"place_name":"x"}`},
		{"missing coordinates", `{"geometry":{"type":"Point"},"place_name":"x"}`},
		{"coordinates not an array", `{"geometry":{"type":"Point","coordinates":"1,2"},"place_name":"x"}`},
		{"null coordinates", `{"geometry":{"type":"Point","coordinates":null},"place_name":"x"}`},
		{"single coordinate", `{"geometry":{"type":"Point","coordinates":[1]},"place_name":"x"}`},
		{"non-numeric longitude", `{"geometry":{"type":"Point","coordinates":["east",2]},"place_name":"x"}`},
		{"null latitude", `{"geometry":{"type":"Point","coordinates":[1,null]},"place_name":"x"}`},
		{"missing place_name", `{"geometry":{"type":"Point","coordinates":[1,2]}}`},
		{"null place_name", `{"geometry":{"type":"Point","coordinates":[1,2]},"place_name":null}`},
		{"numeric place_name", `{"geometry":{"type":"Point","coordinates":[1,2]},"place_name":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := PlacemarkFromFeature(json.RawMessage(tt.feature))
			assert.False(t, ok)
		})
	}
}

func TestPlacemarkFromFeature_Idempotent(t *testing.T) {
	a, ok := PlacemarkFromFeature(json.RawMessage(sanFrancisco))
	require.True(t, ok)
	b, ok := PlacemarkFromFeature(json.RawMessage(sanFrancisco))
	require.True(t, ok)

	assert.Equal(t, a, b)
}

func TestPlacemark_MarshalJSON(t *testing.T) {
	p := NewPlacemark(Coordinate{Latitude: 30.2672, Longitude: -97.7431}, "Austin, Texas, United States")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"latitude":30.2672,"longitude":-97.7431,"place_name":"Austin, Texas, United States"}`, string(data))
}

func TestCoordinate_Valid(t *testing.T) {
	assert.True(t, Coordinate{Latitude: 37.77, Longitude: -122.42}.Valid())
	assert.True(t, Coordinate{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Coordinate{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Coordinate{Latitude: 0, Longitude: -180.5}.Valid())
}

func TestCoordinate_PointIsLonLat(t *testing.T) {
	pt := Coordinate{Latitude: 37.77, Longitude: -122.42}.Point()
	assert.Equal(t, -122.42, pt.Lon())
	assert.Equal(t, 37.77, pt.Lat())
}

func TestFeatureCollection(t *testing.T) {
	fc := FeatureCollection([]Placemark{
		NewPlacemark(Coordinate{Latitude: 37.77, Longitude: -122.42}, "San Francisco, California, United States"),
	})

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"FeatureCollection",
		"features":[{
			"type":"Feature",
			"geometry":{"type":"Point","coordinates":[-122.42,37.77]},
			"properties":{"place_name":"San Francisco, California, United States"}
		}]
	}`, string(data))
}

func TestFeatureCollection_Empty(t *testing.T) {
	data, err := json.Marshal(FeatureCollection(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}
