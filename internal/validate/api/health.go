package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"

	checkTimeout = 2 * time.Second
)

// Checker is a dependency probed by /ready.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func healthHandler(service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = encodeResponse(r.Context(), w, healthRes{
			Status:  "healthy",
			Service: service,
			Version: version,
			Time:    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyHandler(checks map[string]Checker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		res := readyRes{Status: statusReady, Checks: make(map[string]string, len(names))}

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := checks[name].Ping(ctx)
			cancel()

			if err != nil {
				res.Status = statusNotReady
				res.Checks[name] = "failed"
				continue
			}
			res.Checks[name] = "ok"
		}

		_ = encodeResponse(r.Context(), w, res)
	}
}
