// Package telemetry provides Pyroscope continuous profiling integration.
package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Every distinct key/value combination becomes its own
// profile series, so values must stay low-cardinality.
const (
	// ProfilingLabelTenantID is the label key for the tenant.
	ProfilingLabelTenantID = "tenant_id"
	// ProfilingLabelOperation is the label key for the operation name.
	ProfilingLabelOperation = "operation"
	// ProfilingLabelCostMethod is the label key for the cost method of a compute pass.
	ProfilingLabelCostMethod = "cost_method"
	// ProfilingLabelRegion is the label key for code regions, such as "lot_write".
	ProfilingLabelRegion = "region"
)

// MaxLabelValueLength caps label values before they reach Pyroscope.
const MaxLabelValueLength = 128

// highCardinalityLabels are keys sanitizeLabels drops outright. One series
// per item, document or job would swamp the profile store. tenant_id stays
// allowed, tenants number in the hundreds.
var highCardinalityLabels = map[string]bool{
	"item_id":        true,
	"job_id":         true,
	"transaction_id": true,
	"entry_id":       true,
	"trace_id":       true,
	"span_id":        true,
}

// WithProfilingLabels runs fn with the given labels applied to all samples
// collected inside it. The labels are sanitized first, high-cardinality keys
// are dropped and oversized values truncated. With nothing left after
// sanitizing, fn runs unlabeled.
//
//	telemetry.WithProfilingLabels(ctx, telemetry.CostComputeLabels("FIFO", tenantID), func(c context.Context) {
//	    runPass(c)
//	})
//
// pyroscope.TagWrapper rides on Go's native pprof labels, so the same labels
// show up in standard pprof output too.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// ProfilingScope accumulates labels across call layers before running the
// labeled section. Callers that know all labels up front can call
// WithProfilingLabels directly.
type ProfilingScope struct {
	labels map[string]string
}

// NewProfilingScope creates a scope seeded with the given labels. The map is
// copied, later changes to it do not reach the scope.
func NewProfilingScope(labels map[string]string) *ProfilingScope {
	scope := &ProfilingScope{
		labels: make(map[string]string, len(labels)),
	}
	maps.Copy(scope.labels, labels)
	return scope
}

// WithLabel adds a single label to the scope.
func (s *ProfilingScope) WithLabel(key, value string) *ProfilingScope {
	s.labels[key] = value
	return s
}

// WithTenantID adds the tenant_id label.
func (s *ProfilingScope) WithTenantID(tenantID string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelTenantID, tenantID)
}

// WithOperation adds the operation label.
func (s *ProfilingScope) WithOperation(operation string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelOperation, operation)
}

// WithCostMethod adds the cost_method label.
func (s *ProfilingScope) WithCostMethod(method string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelCostMethod, method)
}

// WithRegion adds the region label.
func (s *ProfilingScope) WithRegion(region string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelRegion, region)
}

// Labels returns a copy of the accumulated labels.
func (s *ProfilingScope) Labels() map[string]string {
	result := make(map[string]string, len(s.labels))
	maps.Copy(result, s.labels)
	return result
}

// Run executes fn with the accumulated labels.
func (s *ProfilingScope) Run(ctx context.Context, fn func(context.Context)) {
	WithProfilingLabels(ctx, s.labels, fn)
}

// sanitizeLabels turns a label map into the flat key/value slice the
// profiler expects. Empty keys and values are skipped, high-cardinality keys
// dropped, oversized values truncated and keys normalized to snake_case.
// Keys are emitted in sorted order so the output is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitizedKey := sanitizeLabelKey(key)
		if sanitizedKey == "" {
			continue
		}
		pairs = append(pairs, sanitizedKey, value)
	}

	return pairs
}

// sanitizeLabelKey normalizes a label key to snake_case and strips anything
// that is not alphanumeric or underscore.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	result := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		}
	}
	return string(result)
}

// CostComputeLabels builds the standard label set for a compute pass.
func CostComputeLabels(costMethod, tenantID string) map[string]string {
	labels := make(map[string]string, 3)

	labels[ProfilingLabelOperation] = "compute_item_cost"
	if costMethod != "" {
		labels[ProfilingLabelCostMethod] = costMethod
	}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}

	return labels
}

// OperationLabels builds labels for a named operation.
func OperationLabels(operation string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[ProfilingLabelOperation] = operation
	maps.Copy(labels, extraLabels)

	return labels
}

// RegionLabels builds labels for a code region inside a larger operation.
func RegionLabels(region string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[ProfilingLabelRegion] = region
	maps.Copy(labels, extraLabels)

	return labels
}
