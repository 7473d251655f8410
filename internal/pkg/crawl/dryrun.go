package crawl

import (
	"context"

	"github.com/internetarchive/frontier/pkg/models"
)

// DryRun is a Processor that fetches nothing and reports every record as a
// success. It is used to drain a frontier.
type DryRun struct{}

// Process reports a zero-duration success
func (DryRun) Process(_ context.Context, _ *models.Record) Result {
	return Result{Outcome: models.OutcomeSuccess}
}
