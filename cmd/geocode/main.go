// Command geocode runs a single forward or reverse Mapbox lookup and prints
// the resulting placemarks.
//
// Usage:
//
//	geocode -address "1600 Pennsylvania Ave NW, Washington DC"
//	geocode -lat 38.8977 -lon -77.0365 -format geojson
//
// MAPBOX_TOKEN is read from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/adapter/mapbox"
	"github.com/couchcryptid/mapbox-geocoder/internal/config"
	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/joho/godotenv"
)

var errInterrupted = errors.New("lookup cancelled")

type options struct {
	address string
	lat     float64
	lon     float64
	format  string
	timeout time.Duration
}

type outcome struct {
	placemarks []domain.Placemark
	err        error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "geocode:", err)
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func run() error {
	opts := options{lat: math.NaN(), lon: math.NaN()}
	flag.StringVar(&opts.address, "address", "", "address to geocode (forward lookup)")
	flag.Func("lat", "latitude for a reverse lookup", floatFlag(&opts.lat))
	flag.Func("lon", "longitude for a reverse lookup", floatFlag(&opts.lon))
	flag.StringVar(&opts.format, "format", "text", "output format: text, json or geojson")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "cancel the lookup after this long")
	flag.Parse()

	if err := opts.validate(); err != nil {
		flag.Usage()
		return err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	g := mapbox.NewGeocoder(cfg.MapboxToken, cfg.MapboxTimeout,
		observability.NewLogger(cfg), observability.NewMetrics(),
		mapbox.WithBaseURL(cfg.MapboxBaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	placemarks, err := lookup(ctx, g, opts)
	if err != nil {
		return err
	}
	return render(os.Stdout, opts.format, placemarks)
}

// lookup drives the geocoder through its completion handler, cancelling it
// on interrupt or timeout.
func lookup(ctx context.Context, g *mapbox.Geocoder, opts options) ([]domain.Placemark, error) {
	done := make(chan outcome, 1)
	completion := func(placemarks []domain.Placemark, err error) {
		done <- outcome{placemarks: placemarks, err: err}
	}

	if opts.address != "" {
		g.ForwardGeocode(opts.address, completion)
	} else {
		g.ReverseGeocode(domain.Coordinate{Latitude: opts.lat, Longitude: opts.lon}, completion)
	}

	timer := time.NewTimer(opts.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.placemarks, res.err
	case <-ctx.Done():
		g.Cancel()
		return nil, errInterrupted
	case <-timer.C:
		g.Cancel()
		return nil, fmt.Errorf("lookup timed out after %s", opts.timeout)
	}
}

func render(w io.Writer, format string, placemarks []domain.Placemark) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]domain.Placemark{"placemarks": placemarks})
	case "geojson":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(domain.FeatureCollection(placemarks))
	default:
		if len(placemarks) == 0 {
			_, err := fmt.Fprintln(w, "no results")
			return err
		}
		for _, p := range placemarks {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", p.Coordinate(), p.Name()); err != nil {
				return err
			}
		}
		return nil
	}
}

func (o options) validate() error {
	reverse := !math.IsNaN(o.lat) || !math.IsNaN(o.lon)
	switch {
	case o.address == "" && !reverse:
		return errors.New("either -address or -lat and -lon is required")
	case o.address != "" && reverse:
		return errors.New("-address cannot be combined with -lat/-lon")
	case reverse && (math.IsNaN(o.lat) || math.IsNaN(o.lon)):
		return errors.New("-lat and -lon must be given together")
	case reverse && !(domain.Coordinate{Latitude: o.lat, Longitude: o.lon}).Valid():
		return fmt.Errorf("coordinate %v,%v out of range", o.lat, o.lon)
	case o.format != "text" && o.format != "json" && o.format != "geojson":
		return fmt.Errorf("unknown format %q", o.format)
	case o.timeout <= 0:
		return errors.New("-timeout must be positive")
	}
	return nil
}

func floatFlag(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
