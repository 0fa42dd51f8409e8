package health

import (
	"context"
	"errors"
	"time"
)

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
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// checkTimeout bounds each individual check so /health stays responsive
// when a provider hangs.
const checkTimeout = 3 * time.Second

var errPipelineNotReady = errors.New("pipeline not ready")

// Service coordinates health checks.
type Service struct {
	counter   CounterPinger
	pipeline  PipelineState
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(counter CounterPinger, pipeline PipelineState, embedding EmbeddingChecker) *Service {
	return &Service{counter: counter, pipeline: pipeline, embedding: embedding}
}

type dependencyCheck struct {
	name     string
	critical bool // failure makes the service Unhealthy rather than Degraded
	run      func(ctx context.Context) error
}

func (s *Service) checks() []dependencyCheck {
	ps := []dependencyCheck{
		{name: "counter", run: s.counter.Ping},
		{name: "pipeline", critical: true, run: func(context.Context) error {
			if !s.pipeline.Ready() {
				return errPipelineNotReady
			}
			return nil
		}},
	}
	if s.embedding != nil {
		ps = append(ps, dependencyCheck{name: "embedding", run: s.embedding.HealthCheck})
	}
	return ps
}

// Check runs every dependency check. A pipeline that failed to build makes the
// service Unhealthy; any other failing check makes it Degraded.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	for _, p := range s.checks() {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.run(pctx)
		cancel()

		if err == nil {
			report.Checks[p.name] = CheckOK
			continue
		}
		report.Checks[p.name] = CheckError
		switch {
		case p.critical:
			report.Status = Unhealthy
		case report.Status == Healthy:
			report.Status = Degraded
		}
	}

	return report
}
