// README: Address-to-coordinates resolution via the Google Maps Geocoding API.
package geocode

import (
	"context"
	"log/slog"

	"googlemaps.github.io/maps"

	"ridepool/internal/types"
)

// Geocoder resolves a free-text address to coordinates. A false return means
// "no coordinates"; the matcher then treats the record as never matching on
// location rather than erroring.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (types.Point, bool)
}

type GoogleGeocoder struct {
	client *maps.Client
	region string
	log    *slog.Logger
}

func NewGoogleGeocoder(apiKey, region string, log *slog.Logger) (*GoogleGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleGeocoder{client: client, region: region, log: log}, nil
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (types.Point, bool) {
	if address == "" {
		return types.Point{}, false
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		g.log.Warn("geocode", "address", address, "err", err)
		return types.Point{}, false
	}
	if len(results) == 0 {
		return types.Point{}, false
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, true
}

// Noop never resolves; used when no API key is configured and in tests.
type Noop struct{}

func (Noop) Resolve(context.Context, string) (types.Point, bool) { return types.Point{}, false }
