package numistr

import "context"

// HealthStatus represents the aggregated health of the backing stores.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}

// Healthy reports whether every backing store answered.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// Health pings the catalog database and, when configured, the cache.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
