package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// GoogleProvider resolves routes via the Google Maps Distance Matrix API.
type GoogleProvider struct {
	client *maps.Client
}

// NewGoogleProvider creates a GoogleProvider with the given API key.
func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

// Route queries the Distance Matrix API in driving mode.
func (p *GoogleProvider) Route(ctx context.Context, originLat, originLng, destLat, destLng float64) (Route, error) {
	resp, err := p.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", originLat, originLng)},
		Destinations: []string{fmt.Sprintf("%f,%f", destLat, destLng)},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Route{}, fmt.Errorf("no route found")
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Route{}, fmt.Errorf("no route found: %s", el.Status)
	}

	return Route{
		DistanceMeters:  float64(el.Distance.Meters),
		DurationSeconds: el.Duration.Seconds(),
	}, nil
}

var _ Provider = (*GoogleProvider)(nil)
