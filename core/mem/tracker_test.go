// File: core/mem/tracker_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerAccounting(t *testing.T) {
	tr := NewTracker(1 << 20)

	tr.Allocate(100)
	tr.Allocate(50)
	require.EqualValues(t, 150, tr.Current())
	require.EqualValues(t, 150, tr.Peak())

	tr.Deallocate(100)
	require.EqualValues(t, 50, tr.Current())
	require.EqualValues(t, 150, tr.Peak(), "peak never decreases")

	tr.Reset()
	require.EqualValues(t, 0, tr.Current())
	require.EqualValues(t, 0, tr.Peak())
}

func TestTrackerLimit(t *testing.T) {
	tr := NewTracker(100)

	tr.Allocate(100)
	require.False(t, tr.LimitExceeded(), "usage at the ceiling is not exceeded")

	tr.Allocate(1)
	require.True(t, tr.LimitExceeded())

	tr.Deallocate(1)
	require.False(t, tr.LimitExceeded())
}

func TestTrackerDefaultLimit(t *testing.T) {
	tr := NewTracker(0)
	require.EqualValues(t, DefaultLimit, tr.Limit())
}

// TestTrackerConcurrent exercises the CAS-retry peak update under
// contention: balanced allocate/deallocate pairs must net to zero while
// the peak observes at least one allocation.
func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker(1 << 30)
	const goroutines = 8
	const rounds = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				tr.Allocate(64)
				tr.Deallocate(64)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 0, tr.Current())
	require.GreaterOrEqual(t, tr.Peak(), int64(64))
	require.LessOrEqual(t, tr.Peak(), int64(64*goroutines))
}
