package appointments

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
)

// SearchQuery filters professionals. Every field is optional, but a radius
// needs both origin coordinates.
type SearchQuery struct {
	Specialty string   `json:"specialty,omitempty"`
	MaxRate   *float64 `json:"max_rate,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  *float64 `json:"radius_km,omitempty"`
}

// Validate rejects out-of-range filters.
func (q SearchQuery) Validate() error {
	if q.MaxRate != nil && (*q.MaxRate < 0 || math.IsNaN(*q.MaxRate)) {
		return fmt.Errorf("%w: max_rate must not be negative", ErrInvalidSearch)
	}
	if q.RadiusKm != nil && (*q.RadiusKm < 0 || math.IsNaN(*q.RadiusKm)) {
		return fmt.Errorf("%w: radius_km must not be negative", ErrInvalidSearch)
	}
	if (q.Latitude == nil) != (q.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude go together", ErrInvalidSearch)
	}
	if q.Latitude != nil && !geo.ValidLatitude(*q.Latitude) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidSearch)
	}
	if q.Longitude != nil && !geo.ValidLongitude(*q.Longitude) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidSearch)
	}
	if q.RadiusKm != nil && q.Latitude == nil {
		return fmt.Errorf("%w: radius_km needs an origin", ErrInvalidSearch)
	}
	return nil
}

func (q SearchQuery) origin() *geo.Point {
	if q.Latitude == nil || q.Longitude == nil {
		return nil
	}
	return &geo.Point{Lat: *q.Latitude, Lon: *q.Longitude}
}

// SearchResult is a matching professional, with the distance from the
// query origin when one was given.
type SearchResult struct {
	identity.Professional
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// SearchProfessionals filters by specialty substring (case-insensitive),
// maximum rate and radius. With an origin, results are sorted nearest
// first and professionals without coordinates come last; otherwise by id.
func (s *Service) SearchProfessionals(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	pros, err := s.identities.Professionals(ctx)
	if err != nil {
		return nil, identityError("search professionals", err)
	}

	origin := q.origin()
	specialty := strings.ToLower(strings.TrimSpace(q.Specialty))
	out := []SearchResult{}
	for _, p := range pros {
		if specialty != "" && !strings.Contains(strings.ToLower(p.Specialty), specialty) {
			continue
		}
		if q.MaxRate != nil && p.Rate > *q.MaxRate {
			continue
		}
		res := SearchResult{Professional: p}
		if origin != nil && p.Location != nil {
			d := geo.Distance(*origin, *p.Location)
			res.DistanceKm = &d
		}
		if q.RadiusKm != nil && (res.DistanceKm == nil || *res.DistanceKm > *q.RadiusKm) {
			continue
		}
		out = append(out, res)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case di != nil && dj != nil && *di != *dj:
			return *di < *dj
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
