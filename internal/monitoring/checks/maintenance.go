package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/taskpad/internal/app/maintenance"
	"github.com/charlesng35/taskpad/internal/monitoring"
)

const defaultMaintenanceMaxAge = 36 * time.Hour

// JobReporter exposes the run history of scheduled cleanup jobs.
type JobReporter interface {
	Jobs() []maintenance.JobStatus
	Now() time.Time
}

// Maintenance flags cleanup jobs that keep failing or have not run within
// maxAge. Neither takes the service down; both are reported as degraded.
func Maintenance(reporter JobReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		jobs := reporter.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no runs yet"}
		}

		now := reporter.Now()
		status := monitoring.StatusUp
		var problems []string
		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastError)
			}
			if now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
