// Package poll refreshes the client's fleet snapshot from the REST API on a
// fixed interval. Realtime events carry the urgent updates; this loop only
// backfills list data, so a failed cycle is skipped and the next tick retries.
package poll

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"campustransit/client/api"
)

const pollInterval = 30 * time.Second

// Snapshot is the most recent successful fetch of fleet data. Stats is nil
// for non-admin sessions, whose stats fetch is rejected by the server.
type Snapshot struct {
	Vehicles  []api.Vehicle
	Trips     []api.Trip
	Routes    []api.Route
	Stats     *api.DashboardStats
	UpdatedAt time.Time
}

// Poller periodically pulls vehicles, trips and routes. Errors never stop
// the loop and never shrink the interval.
type Poller struct {
	client   *api.Client
	interval time.Duration

	mu       sync.Mutex
	snapshot Snapshot
}

func New(client *api.Client) *Poller {
	return &Poller{
		client:   client,
		interval: pollInterval,
	}
}

// Run polls once immediately and then on every tick until the context ends.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Snapshot returns the last successful fetch. Zero value until the first
// cycle completes.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// poll fetches all four collections. Any failure skips the whole cycle so
// the snapshot stays internally consistent, with one exception: the stats
// endpoint is admin-only, so a 403 just leaves Stats empty and the lists
// still commit.
func (p *Poller) poll(ctx context.Context) {
	vehicles, err := p.client.GetVehicles(ctx)
	if err != nil {
		log.Printf("poll: vehicles fetch failed, skipping cycle: %v", err)
		return
	}
	trips, err := p.client.GetTrips(ctx)
	if err != nil {
		log.Printf("poll: trips fetch failed, skipping cycle: %v", err)
		return
	}
	routes, err := p.client.GetRoutes(ctx)
	if err != nil {
		log.Printf("poll: routes fetch failed, skipping cycle: %v", err)
		return
	}
	stats, err := p.client.GetDashboardStats(ctx)
	if err != nil {
		var statusErr *api.StatusError
		if !errors.As(err, &statusErr) || statusErr.Status != http.StatusForbidden {
			log.Printf("poll: stats fetch failed, skipping cycle: %v", err)
			return
		}
		stats = nil
	}

	p.mu.Lock()
	p.snapshot = Snapshot{
		Vehicles:  vehicles,
		Trips:     trips,
		Routes:    routes,
		Stats:     stats,
		UpdatedAt: time.Now(),
	}
	p.mu.Unlock()
}
