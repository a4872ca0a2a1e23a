package metrics

import (
	"fmt"

	"github.com/LavishGent/pageturn/internal/types"
)

// Tag creates a formatted DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// QualityTag creates a render tier tag.
func QualityTag(q types.RenderQuality) string {
	return Tag("quality", q.String())
}

// PoolTag creates a cache pool tag (viewport/thumbnail/preview).
func PoolTag(pool string) string {
	return Tag("pool", pool)
}

// StageTag creates a pipeline stage tag.
func StageTag(stage string) string {
	return Tag("stage", stage)
}

// PressureTag creates a memory pressure tag.
func PressureTag(level string) string {
	return Tag("pressure", level)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
