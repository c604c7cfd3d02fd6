// Package health derives health, readiness and liveness reports from a
// lifecycle engine status snapshot.
package health

import (
	"time"

	"github.com/GoCodeAlone/modlife"
)

// StatusSource provides engine status snapshots.
type StatusSource interface {
	Status() modlife.EngineStatus
}

// HealthStatus represents the status of a module or of the whole engine
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
	StatusUnknown  HealthStatus = "unknown"
)

// CheckResult is the health of a single module.
type CheckResult struct {
	Name    string              `json:"name"`
	Status  HealthStatus        `json:"status"`
	State   modlife.ModuleState `json:"state"`
	Details map[string]any      `json:"details,omitempty"`
}

// AggregatedStatus is the health of the engine and all of its modules.
type AggregatedStatus struct {
	OverallStatus   HealthStatus            `json:"overall_status"`
	ReadinessStatus HealthStatus            `json:"readiness_status"`
	LivenessStatus  HealthStatus            `json:"liveness_status"`
	Phase           modlife.Phase           `json:"phase"`
	Timestamp       time.Time               `json:"timestamp"`
	CheckResults    map[string]*CheckResult `json:"check_results"`
	Summary         *StatusSummary          `json:"summary"`
}

// StatusSummary counts modules per health status.
type StatusSummary struct {
	TotalChecks    int `json:"total_checks"`
	PassingChecks  int `json:"passing_checks"`
	WarningChecks  int `json:"warning_checks"`
	CriticalChecks int `json:"critical_checks"`
	UnknownChecks  int `json:"unknown_checks"`
}

// IsReady reports whether the engine accepts traffic.
func (a *AggregatedStatus) IsReady() bool {
	return a.ReadinessStatus == StatusHealthy
}

// IsLive reports whether the process is still doing useful work.
func (a *AggregatedStatus) IsLive() bool {
	return a.LivenessStatus == StatusHealthy
}
