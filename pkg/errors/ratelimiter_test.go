package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStackBasedRateLimited(t *testing.T) {
	now := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(time.Minute)
	limiter.now = func() time.Time { return now }

	limited, stats := limiter.StackBasedRateLimited("a.go:1")
	assert.False(t, limited)
	assert.Nil(t, stats.lastReportTime)

	now = now.Add(10 * time.Second)
	limited, _ = limiter.StackBasedRateLimited("a.go:1")
	assert.True(t, limited)

	limited, _ = limiter.StackBasedRateLimited("b.go:2")
	assert.False(t, limited, "other stacks are limited independently")

	now = now.Add(time.Minute)
	limited, stats = limiter.StackBasedRateLimited("a.go:1")
	assert.False(t, limited)
	assert.Equal(t, 2, stats.totalOccurCount)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
}

func TestWrapAndReportNil(t *testing.T) {
	assert.Nil(t, WrapAndReport(nil, "nothing"))
	assert.Nil(t, WithStackAndReport(nil))
}

type recordingReporter struct {
	got []error
}

func (r *recordingReporter) Report(err error) {
	r.got = append(r.got, err)
}

func TestReportersReceiveWrappedErrors(t *testing.T) {
	t.Setenv(debugMode, "")
	rec := &recordingReporter{}
	saved := reporters
	reporters = nil
	RegisterReporter(rec)
	defer func() { reporters = saved }()

	base := New("dial tcp: refused")
	err := WrapAndReport(base, "dial bridge")
	assert.EqualError(t, err, "dial bridge: dial tcp: refused")
	assert.True(t, Is(err, base))
	if assert.Len(t, rec.got, 1) {
		assert.Equal(t, err, rec.got[0])
	}

	t.Setenv(debugMode, "1")
	_ = NewWithReport("ignored in debug mode")
	assert.Len(t, rec.got, 1)
}

func TestFullStack(t *testing.T) {
	frames := callers().fullStack()
	if assert.NotEmpty(t, frames) {
		assert.Contains(t, frames[0], "TestFullStack")
	}
}
