package container

import (
	"context"
	"fmt"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/store"
)

// SeedReport counts what a registry seed created.
type SeedReport struct {
	Entities int
	Aliases  int
	Rules    int
}

// Seed loads a registry into the store. Entities are created through the
// commit phase so they are mirrored; existing entities are reused, which
// makes seeding idempotent.
func (c *Container) Seed(ctx context.Context, reg *store.Registry) (SeedReport, error) {
	var report SeedReport
	for _, seed := range reg.Entities {
		created, err := c.committer.CreateEntity(ctx, seed.Name)
		if err != nil {
			return report, fmt.Errorf("failed to create entity %q: %w", seed.Name, err)
		}
		report.Entities++
		for _, alias := range seed.Aliases {
			if err := c.store.SaveAlias(ctx, alias, created.EntityName); err != nil {
				return report, fmt.Errorf("failed to save alias %q: %w", alias, err)
			}
			report.Aliases++
		}
	}

	for _, rule := range reg.Rules {
		if err := c.store.SaveRule(ctx, rule); err != nil {
			return report, fmt.Errorf("failed to save rule %q: %w", rule.DescriptionPattern, err)
		}
		report.Rules++
	}

	c.logger.Info("Seeded registry",
		logging.F("entities", report.Entities),
		logging.F("aliases", report.Aliases),
		logging.F("rules", report.Rules))
	return report, nil
}
