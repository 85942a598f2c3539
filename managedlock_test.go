package lockmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagedLockReleaseIsIdempotent(t *testing.T) {
	table := NewLockTable(64, NewNopLogger())
	defer table.Shutdown(context.Background())

	l := &recordingListener{}
	reg := table.Register(l)
	waitFor(t, time.Second, reg.IsRegistered)

	latch := NewLatch()
	require.NoError(t, latch.AcquireRead(context.Background()))
	ml := newManagedLock(table, 1, []acquisition{{latch: latch, path: "/db", mode: ModeRead}})

	ml.Release()
	ml.Release()

	waitFor(t, time.Second, func() bool { return len(l.snapshot()) >= 2 })
	actions := l.snapshot()

	var releasedCount, diagnosticCount int
	for _, a := range actions {
		if a.Action == Released && a.Path == "/db" {
			releasedCount++
		}
		if a.Action == Released && a.Reason == ErrUnbalancedRelease.Error() {
			diagnosticCount++
		}
	}
	assert.Equal(t, 1, releasedCount)
	assert.Equal(t, 1, diagnosticCount)
	assert.False(t, latch.IsHeldForReadBy(currentGoroutineID()))
}

func TestManagedLockReleasesInReverseOrder(t *testing.T) {
	table := NewLockTable(64, NewNopLogger())
	defer table.Shutdown(context.Background())

	l := &recordingListener{}
	reg := table.Register(l)
	waitFor(t, time.Second, reg.IsRegistered)

	parent := NewLatch()
	target := NewLatch()
	require.NoError(t, parent.AcquireWrite(context.Background()))
	require.NoError(t, target.AcquireWrite(context.Background()))

	ml := newManagedLock(table, 7, []acquisition{
		{latch: parent, path: "/db", mode: ModeWrite},
		{latch: target, path: "/db/colA", mode: ModeWrite},
	})
	ml.Release()

	waitFor(t, time.Second, func() bool { return len(l.snapshot()) == 2 })
	actions := l.snapshot()
	assert.Equal(t, "/db/colA", actions[0].Path)
	assert.Equal(t, "/db", actions[1].Path)
}

func TestManagedLockPaths(t *testing.T) {
	ml := newManagedLock(nil, 1, []acquisition{
		{path: "/db", mode: ModeRead},
		{path: "/db/colA", mode: ModeRead},
	})
	assert.Equal(t, []string{"/db", "/db/colA"}, ml.Paths())
}
