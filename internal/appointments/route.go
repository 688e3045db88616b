package appointments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
	"github.com/wolfman30/homevisit-scheduler/internal/routing"
)

const maxRouteClusters = 3

// RouteStop is one visit in an optimized route. Cluster is nil when too few
// visits exist to cluster.
type RouteStop struct {
	View
	Cluster *int `json:"cluster,omitempty"`
}

// RouteCluster summarizes one group of visits.
type RouteCluster struct {
	Index    int       `json:"index"`
	Centroid geo.Point `json:"centroid"`
	Count    int       `json:"count"`
}

// Route is the visiting order for a professional's upcoming appointments.
type Route struct {
	ProfessionalID int64          `json:"professional_id"`
	Stops          []RouteStop    `json:"stops"`
	Clusters       []RouteCluster `json:"clusters,omitempty"`
	OptimizedAt    time.Time      `json:"optimized_at"`
}

// OptimizeRoute clusters the professional's future, non-cancelled visits by
// patient location and orders them by (cluster, time). Fewer than two
// visits are returned in time order without clusters.
func (s *Service) OptimizeRoute(ctx context.Context, professionalID int64) (*Route, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.optimize_route")
	defer span.End()
	span.SetAttributes(attribute.Int64("homevisit.professional_id", professionalID))

	if _, err := s.identities.ProfessionalByID(ctx, professionalID); err != nil {
		return nil, identityError("optimize route", err)
	}
	now := s.now()
	upcoming, err := s.repo.ListByProfessionalSince(ctx, professionalID, now)
	if err != nil {
		err = storeError("optimize route", err)
		span.RecordError(err)
		return nil, err
	}
	// Cancelled visits are not driven to, so they neither count toward the
	// two-stop minimum for clustering nor appear as stops.
	active := upcoming[:0]
	for _, a := range upcoming {
		if a.Status != StatusCancelled {
			active = append(active, a)
		}
	}
	views, err := s.hydrate(ctx, active)
	if err != nil {
		return nil, err
	}

	route := &Route{ProfessionalID: professionalID, Stops: make([]RouteStop, len(views)), OptimizedAt: now}
	for i := range views {
		route.Stops[i] = RouteStop{View: views[i]}
	}
	if len(views) < 2 {
		return route, nil
	}

	points := make([]geo.Point, len(views))
	for i, v := range views {
		if v.Patient != nil {
			points[i] = geo.OrZero(v.Patient.Location)
		}
	}
	k := min(maxRouteClusters, len(points))
	res, err := routing.KMeans(points, k, routing.Options{Seed: s.routeSeed})
	if err != nil {
		return nil, fmt.Errorf("appointments: optimize route: %w", err)
	}
	for i := range route.Stops {
		label := res.Labels[i]
		route.Stops[i].Cluster = &label
	}
	sort.SliceStable(route.Stops, func(i, j int) bool {
		ci, cj := *route.Stops[i].Cluster, *route.Stops[j].Cluster
		if ci != cj {
			return ci < cj
		}
		return route.Stops[i].ScheduledAt.Before(route.Stops[j].ScheduledAt)
	})
	for c := range res.Centroids {
		route.Clusters = append(route.Clusters, RouteCluster{Index: c, Centroid: res.Centroids[c], Count: res.Counts[c]})
	}
	span.SetAttributes(attribute.Int("homevisit.route.stops", len(route.Stops)), attribute.Int("homevisit.route.k", k))
	return route, nil
}
