package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckDegraded indicates a component serving from a fallback.
	CheckDegraded CheckResult = "degraded"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names reported by Service.Check.
const (
	CheckVectorStore = "vector_store"
	CheckModel       = "model"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store StorePinger
	model ModelStatus
}

// New creates a Service. model can be nil before the runtime is initialized.
func New(store StorePinger, model ModelStatus) *Service {
	return &Service{store: store, model: model}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks[CheckVectorStore] = CheckError
	} else {
		checks[CheckVectorStore] = CheckOK
	}

	switch {
	case s.model == nil:
		checks[CheckModel] = CheckError
	case s.model.Degraded():
		checks[CheckModel] = CheckDegraded
	default:
		checks[CheckModel] = CheckOK
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			return Report{Status: Unhealthy, Checks: checks}
		}
		if v == CheckDegraded {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
