package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glabrego/prismwalls/internal/querycache"
)

var mergedOps = []querycache.Operation{querycache.OpCurated, querycache.OpTrending, querycache.OpSearch, querycache.OpCategory}

func TestMerger_SlowReaderEndsOnNewestSnapshot(t *testing.T) {
	m := NewMerger()
	t.Cleanup(m.Close)

	// Nobody reads while every operation moves through many states.
	for i := 1; i <= 50; i++ {
		for _, op := range mergedOps {
			m.Push(State{Query: Query{Operation: op}, Status: StatusLoading, Pages: i})
			m.Push(State{Query: Query{Operation: op}, Status: StatusSuccess, Pages: i})
		}
	}

	last := map[querycache.Operation]State{}
	received := 0
	timeout := time.After(2 * time.Second)
	for len(last) < len(mergedOps) || !allFinal(last) {
		select {
		case st := <-m.Updates():
			received++
			last[st.Query.Operation] = st
		case <-timeout:
			t.Fatalf("newest snapshots never arrived: %+v", last)
		}
	}
	for _, op := range mergedOps {
		assert.Equal(t, StatusSuccess, last[op].Status, op)
		assert.Equal(t, 50, last[op].Pages, op)
	}
	assert.Less(t, received, 400, "intermediate snapshots are coalesced")

	select {
	case st := <-m.Updates():
		t.Fatalf("unexpected extra snapshot %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
}

func allFinal(last map[querycache.Operation]State) bool {
	for _, st := range last {
		if st.Pages != 50 || st.Status != StatusSuccess {
			return false
		}
	}
	return true
}

func TestMerger_ForwardsControllerChangesAndCloses(t *testing.T) {
	m := NewMerger()
	c := newTestController(newFakeFetcher(5), 10, 30)
	m.Add(c)

	require.NoError(t, c.Load(context.Background(), Query{Operation: querycache.OpCurated}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-m.Updates():
			if st.Status == StatusSuccess {
				assert.Len(t, st.Items, 5)
				m.Close()
				_, open := <-m.Updates()
				assert.False(t, open)
				return
			}
		case <-deadline:
			t.Fatal("no success snapshot forwarded")
		}
	}
}
