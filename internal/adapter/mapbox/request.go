package mapbox

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
)

const (
	methodForward = "forward"
	methodReverse = "reverse"

	// DefaultBaseURL is the Mapbox Places geocoding endpoint.
	DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
)

// reverseURL builds {base}/{lon},{lat}.json?access_token=... Mapbox expects
// longitude first.
func (g *Geocoder) reverseURL(coord domain.Coordinate) string {
	query := formatFloat(coord.Longitude) + "," + formatFloat(coord.Latitude)
	return g.lookupURL(query)
}

// forwardURL builds {base}/{address}.json?access_token=... with the address
// escaped as a single path segment.
func (g *Geocoder) forwardURL(address string) string {
	return g.lookupURL(url.PathEscape(address))
}

func (g *Geocoder) lookupURL(segment string) string {
	params := url.Values{"access_token": {g.token}}
	return strings.TrimSuffix(g.baseURL, "/") + "/" + segment + ".json?" + params.Encode()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
