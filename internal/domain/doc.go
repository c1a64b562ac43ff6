// Package domain models geocoding lookups against the Mapbox Places API.
//
// # Response Format
//
// Both lookup modes return a GeoJSON-like feature collection:
//
//	{"features": [
//	  {"geometry": {"type": "Point", "coordinates": [-122.42, 37.77]},
//	   "place_name": "San Francisco, California, United States"}
//	]}
//
// Coordinates are in GeoJSON axis order, longitude first. Any entries after
// the second (altitude) are ignored. A missing or non-array "features"
// member is read as an empty collection.
//
// # Feature Validation
//
// A feature becomes a [Placemark] only if its geometry is an object of type
// "Point", its coordinates are an array whose first two entries convert to
// numbers, and its place_name is a string. Features that fail any check are
// dropped from the result without an error. See [PlacemarkFromFeature].
//
// # Errors
//
// A lookup fails with exactly one of:
//
//	ConnectionError (-1000)  transport failure, wraps the cause
//	HTTPError       (-1001)  status other than 200
//	ParseError      (-1002)  body is not a JSON object
//
// [CodeOf] recovers the code from a wrapped error.
//
// # Lookup Pipeline
//
// Batch jobs arrive as [LookupRequest] messages carrying either an address
// (forward) or a coordinate (reverse). [Resolve] never fails: lookup errors
// are recorded on the [LookupResult] with status "failed", zero results with
// status "empty".
package domain
