package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCounts(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(503, 30*time.Millisecond)
	c.Record(429, 2*time.Millisecond)
	c.RecordReplay()
	c.RecordDropped()

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["rateLimitedTotal"])
	assert.Equal(t, uint64(1), snap["idempotentReplays"])
	assert.Equal(t, uint64(1), snap["droppedJobsTotal"])
	assert.Equal(t, uint64(42), snap["totalDurationMs"])
	assert.InDelta(t, 14.0, snap["avgDurationMs"], 0.001)
}
