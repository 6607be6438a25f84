package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const serviceName = "narration-gateway"

// Version is stamped at build time with -ldflags
var Version = "dev"

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckFunc checks one dependency
type HealthCheckFunc func(ctx context.Context) (bool, error)

// DependencyCheck names a readiness check
type DependencyCheck struct {
	Name  string
	Check HealthCheckFunc
}

// HealthCheckHandler handles liveness requests
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, HealthStatus{
			Status:    "healthy",
			Service:   serviceName,
			Version:   Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessHandler reports ready only when every dependency check passes.
// Nil checks are skipped.
func ReadinessHandler(checks ...DependencyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ready, dependencies := RunChecks(ctx, checks...)

		status := HealthStatus{
			Status:       "ready",
			Service:      serviceName,
			Version:      Version,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		code := http.StatusOK
		if !ready {
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, status)
	}
}

// RunChecks executes each check in order and reports whether all passed
func RunChecks(ctx context.Context, checks ...DependencyCheck) (bool, map[string]DependencyStatus) {
	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, dep := range checks {
		if dep.Check == nil {
			continue
		}
		start := time.Now()
		healthy, err := dep.Check(ctx)

		ds := DependencyStatus{
			Status:    "healthy",
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil || !healthy {
			ds.Status = "unhealthy"
			allHealthy = false
			if err != nil {
				ds.Message = err.Error()
			}
		}
		dependencies[dep.Name] = ds
	}
	return allHealthy, dependencies
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
