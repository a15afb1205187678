// Package places finds restaurants near a coordinate, used to seed the
// option deck for group-swipe plans.
package places

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"

	"github.com/tablemate/tablemate-server/internal/httpclient"
	"github.com/tablemate/tablemate-server/internal/store"
)

// DefaultOverpassURL is the public Overpass API interpreter endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

const (
	defaultRadiusMeters = 3000
	maxRadiusMeters     = 20000
	maxResults          = 20
)

// Restaurant is one nearby search result.
type Restaurant struct {
	store.RestaurantOption
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	DistanceMeters int     `json:"distanceMeters"`
}

// Query is a nearby restaurant search.
type Query struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
	Cuisine      string
}

// Provider searches for restaurants near a coordinate.
type Provider interface {
	Nearby(ctx context.Context, q Query) ([]Restaurant, error)
}

// OverpassProvider queries the OpenStreetMap Overpass API.
type OverpassProvider struct {
	client *httpclient.Client
	url    string
}

// NewOverpassProvider creates a provider against the given interpreter
// endpoint, or DefaultOverpassURL when empty.
func NewOverpassProvider(client *httpclient.Client, endpoint string) *OverpassProvider {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	return &OverpassProvider{client: client, url: endpoint}
}

type overpassResponse struct {
	Elements []struct {
		ID   int64   `json:"id"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
		Tags struct {
			Name    string `json:"name"`
			Cuisine string `json:"cuisine"`
		} `json:"tags"`
	} `json:"elements"`
}

// Nearby searches restaurant nodes within the query radius, sorted by
// distance and capped at maxResults. Unnamed nodes are dropped; they make
// useless swipe cards.
func (p *OverpassProvider) Nearby(ctx context.Context, q Query) ([]Restaurant, error) {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	if radius > maxRadiusMeters {
		radius = maxRadiusMeters
	}

	ql := fmt.Sprintf(`[out:json][timeout:15];(node["amenity"="restaurant"](around:%d,%f,%f););out body;`,
		radius, q.Lat, q.Lng)
	if q.Cuisine != "" {
		ql = fmt.Sprintf(`[out:json][timeout:15];(node["amenity"="restaurant"]["cuisine"~%q,i](around:%d,%f,%f););out body;`,
			q.Cuisine, radius, q.Lat, q.Lng)
	}

	var parsed overpassResponse
	err := p.client.PostForm(ctx, p.url, url.Values{"data": {ql}}, &parsed)
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}

	results := make([]Restaurant, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		if el.Tags.Name == "" {
			continue
		}
		results = append(results, Restaurant{
			RestaurantOption: store.RestaurantOption{
				ID:      fmt.Sprintf("osm-%d", el.ID),
				Name:    el.Tags.Name,
				Cuisine: el.Tags.Cuisine,
			},
			Lat:            el.Lat,
			Lng:            el.Lon,
			DistanceMeters: int(haversine(q.Lat, q.Lng, el.Lat, el.Lon)),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// haversine returns the great-circle distance between two coordinates
// in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(la1)*math.Cos(la2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
