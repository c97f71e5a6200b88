package telemetry

import (
	"fmt"
)

// API is where every component sends its logs and metrics. Tests swap in
// RecorderAPI to assert on what was reported.
//
// note: fault injection point
type API interface {
	// ReportBroken marks a component as broken, ex. a portal page that no
	// longer parses or a failed query. id names the component as
	// "<component>.<method>" in lowercase (portal.grades, detector.deep-changes),
	// the failing step goes into params.
	ReportBroken(id string, params ...any)
	// ReportWarning is for failures that are expected every now and then,
	// like a portal timeout during a fast check.
	ReportWarning(id string, params ...any)
	ReportDebug(msg string, params ...any)
	// ReportCount records a gauge, ex. the number of registered users.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
