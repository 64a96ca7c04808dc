package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/olushako/vaulty/internal/store"
)

// StartCollector periodically refreshes the entity gauges from the store.
// It blocks until the context is canceled.
func StartCollector(ctx context.Context, s store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	collect(s)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect(s)
		}
	}
}

func collect(s store.Store) {
	projects, err := s.ListProjects()
	if err != nil {
		slog.Error("metrics collection failed", "error", err)
		return
	}
	ProjectsTotal.Set(float64(len(projects)))

	if n, err := s.CountSecrets(); err == nil {
		SecretsTotal.Set(float64(n))
	}

	if n, err := s.CountMasterTokens(); err == nil {
		TokensTotal.WithLabelValues("master").Set(float64(n))
	}

	var projectTokens int
	for _, p := range projects {
		tokens, err := s.ListProjectTokens(p.ID)
		if err != nil {
			continue
		}
		projectTokens += len(tokens)
	}
	TokensTotal.WithLabelValues("project").Set(float64(projectTokens))

	devices, err := s.ListAllDevices()
	if err != nil {
		return
	}
	var pending, authorized int
	for _, d := range devices {
		if d.Status == store.DeviceAuthorized {
			authorized++
		} else {
			pending++
		}
	}
	DevicesTotal.WithLabelValues("pending").Set(float64(pending))
	DevicesTotal.WithLabelValues("authorized").Set(float64(authorized))
}
