package health

import (
	"time"

	"github.com/GoCodeAlone/modlife"
)

// Aggregator turns engine status snapshots into health reports.
type Aggregator struct {
	source StatusSource
	now    func() time.Time
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source StatusSource) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// CheckAll evaluates the current engine status.
func (a *Aggregator) CheckAll() *AggregatedStatus {
	report := Evaluate(a.source.Status())
	report.Timestamp = a.now()
	return report
}

// Evaluate maps an engine status to an aggregated health report.
func Evaluate(status modlife.EngineStatus) *AggregatedStatus {
	report := &AggregatedStatus{
		Phase:        status.Phase,
		Timestamp:    time.Now(),
		CheckResults: make(map[string]*CheckResult, len(status.Modules)),
		Summary:      &StatusSummary{},
	}

	for name, ms := range status.Modules {
		result := &CheckResult{
			Name:    name,
			State:   ms.State,
			Status:  moduleHealth(ms.State),
			Details: ms.Status,
		}
		report.CheckResults[name] = result

		report.Summary.TotalChecks++
		switch result.Status {
		case StatusHealthy:
			report.Summary.PassingChecks++
		case StatusWarning:
			report.Summary.WarningChecks++
		case StatusCritical:
			report.Summary.CriticalChecks++
		default:
			report.Summary.UnknownChecks++
		}
	}

	report.OverallStatus = overall(status.Phase, report.Summary)
	report.ReadinessStatus = StatusCritical
	if status.Phase == modlife.PhaseReady {
		report.ReadinessStatus = StatusHealthy
	}
	report.LivenessStatus = StatusHealthy
	switch status.Phase {
	case modlife.PhaseStopped, modlife.PhaseStoppingFailed, modlife.PhaseConfigurationFailed:
		report.LivenessStatus = StatusCritical
	}
	return report
}

func moduleHealth(state modlife.ModuleState) HealthStatus {
	switch state {
	case modlife.StateInitialized:
		return StatusHealthy
	case modlife.StateAwaitingFinalization, modlife.StateFinalizing, modlife.StateFinalized:
		return StatusWarning
	case modlife.StateConfigurationFailed, modlife.StateInitializationFailed, modlife.StateFinalizationFailed:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

func overall(phase modlife.Phase, summary *StatusSummary) HealthStatus {
	switch {
	case summary.CriticalChecks > 0:
		return StatusCritical
	case phase == modlife.PhaseStartingFailed, phase == modlife.PhaseStoppingFailed, phase == modlife.PhaseConfigurationFailed:
		return StatusCritical
	case summary.WarningChecks > 0, phase == modlife.PhaseStopping, phase == modlife.PhaseStopped:
		return StatusWarning
	case phase == modlife.PhaseReady && summary.UnknownChecks == 0:
		return StatusHealthy
	default:
		return StatusUnknown
	}
}
