package domain

import "github.com/paulmach/orb/geojson"

// FeatureCollection renders placemarks as GeoJSON Point features carrying a
// place_name property.
func FeatureCollection(placemarks []Placemark) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range placemarks {
		f := geojson.NewFeature(p.coordinate.Point())
		f.Properties["place_name"] = p.name
		fc.Append(f)
	}
	return fc
}
