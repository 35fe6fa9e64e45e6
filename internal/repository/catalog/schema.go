package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// schema is the resolved set of physical tables.
type schema struct {
	variants   string
	attributes string // "" when no attribute table exists
}

// resolver probes candidate tables once per process. Failed probes are retried on the next call.
type resolver struct {
	mu       sync.Mutex
	resolved *schema
}

func (r *Repo) schema(ctx context.Context) (schema, error) {
	r.resolver.mu.Lock()
	defer r.resolver.mu.Unlock()

	if r.resolver.resolved != nil {
		return *r.resolver.resolved, nil
	}

	variants, err := r.firstExisting(ctx, r.cfg.VariantTables, true)
	if err != nil {
		return schema{}, fmt.Errorf("resolve variant table: %w", err)
	}
	attributes, err := r.firstExisting(ctx, r.cfg.AttributeTables, false)
	if err != nil {
		return schema{}, fmt.Errorf("resolve attribute table: %w", err)
	}
	if attributes == "" {
		r.logger.Warn("No attribute table found, matching on primary columns only",
			zap.Strings("candidates", r.cfg.AttributeTables))
	}

	s := schema{variants: variants, attributes: attributes}
	r.resolver.resolved = &s
	r.logger.Info("Catalog schema resolved",
		zap.String("variants", s.variants),
		zap.String("attributes", s.attributes),
	)
	return s, nil
}

// firstExisting returns the first candidate that exists.
// With fallback set the last candidate is returned unprobed when no earlier one exists.
func (r *Repo) firstExisting(ctx context.Context, candidates []string, fallback bool) (string, error) {
	probe := candidates
	if fallback && len(candidates) > 0 {
		probe = candidates[:len(candidates)-1]
	}
	for _, name := range probe {
		ok, err := r.store.TableExists(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	if fallback && len(candidates) > 0 {
		return candidates[len(candidates)-1], nil
	}
	return "", nil
}
