package demo

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/modlife"
)

// ReporterModuleName is the name the reporter is registered under.
const ReporterModuleName = "reporter"

const defaultReportSchedule = "@every 30s"

// ReporterConfig is resolved from REPORTER_SCHEDULE.
type ReporterConfig struct {
	Schedule string
}

// Reporter logs the engine status on a cron schedule.
type Reporter struct {
	controller modlife.Controller
	logger     modlife.Logger
	cron       *cron.Cron
	reports    atomic.Int64
}

func configureReporter(env modlife.EnvVars) (ReporterConfig, error) {
	spec := env.Get("REPORTER_SCHEDULE", defaultReportSchedule)
	if _, err := cron.ParseStandard(spec); err != nil {
		return ReporterConfig{}, fmt.Errorf("REPORTER_SCHEDULE %q: %w", spec, err)
	}
	return ReporterConfig{Schedule: spec}, nil
}

// Report logs one status line.
func (r *Reporter) Report() {
	st := r.controller.Status()
	counts := make(map[modlife.ModuleState]int)
	for _, m := range st.Modules {
		counts[m.State]++
	}
	r.reports.Add(1)
	r.logger.Info("Lifecycle status", "phase", st.Phase, "modules", len(st.Modules), "states", counts)
}

// Reports returns how many reports were logged.
func (r *Reporter) Reports() int64 {
	return r.reports.Load()
}

// ReporterDependencies declares the dependency on the lifecycle controller.
func ReporterDependencies() modlife.DependencyMap {
	return modlife.DependencyMap{"lifecycle": modlife.DepOf[modlife.Controller](modlife.LifecycleModuleName)}
}

// ReporterModule describes the reporter.
func ReporterModule(logger modlife.Logger) modlife.Descriptor {
	return modlife.Define(configureReporter,
		func(_ context.Context, cfg ReporterConfig, deps modlife.Dependencies) (modlife.Instance[*Reporter], error) {
			controller, err := modlife.DependencyAs[modlife.Controller](deps, "lifecycle")
			if err != nil {
				return modlife.Instance[*Reporter]{}, err
			}
			r := &Reporter{controller: controller, logger: logger, cron: cron.New()}
			if _, err := r.cron.AddFunc(cfg.Schedule, r.Report); err != nil {
				return modlife.Instance[*Reporter]{}, fmt.Errorf("schedule report: %w", err)
			}
			r.cron.Start()
			return modlife.Instance[*Reporter]{
				Instance: r,
				Finalize: func(ctx context.Context) (bool, error) {
					select {
					case <-r.cron.Stop().Done():
						return true, nil
					case <-ctx.Done():
						return false, ctx.Err()
					}
				},
				Status: func() map[string]any {
					return map[string]any{"schedule": cfg.Schedule, "reports": r.Reports()}
				},
			}, nil
		})
}
