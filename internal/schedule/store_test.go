package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/pipeline"
	"github.com/vk/stagegrid/internal/registry"
)

func testCtx() context.Context { return ctxlog.Discard(context.Background()) }

func sealed(t *testing.T, records ...entity.Record) *pipeline.Graph {
	t.Helper()
	g, err := pipeline.Rebuild(testCtx(), entity.NewSnapshot(records...), registry.New())
	require.NoError(t, err)
	return g
}

func rec(i uint32, after ...uint32) entity.Record {
	r := entity.Record{ID: entity.ID{Index: i, Generation: 1}}
	for _, a := range after {
		r.After = append(r.After, entity.ID{Index: a, Generation: 1})
	}
	return r
}

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()
	assert.Equal(t, StateStale, s.State())
	assert.Nil(t, s.Graph())

	err := s.Scope(testCtx(), func(context.Context, *pipeline.Graph) error { return nil })
	assert.ErrorIs(t, err, ErrNoGraph)

	g := sealed(t, rec(0))
	require.NoError(t, s.Replace(testCtx(), g, 7))
	assert.Equal(t, Status{State: StateCurrent, Seq: g.Seq(), Nodes: 3, Version: 7}, s.Status())

	s.MarkStale()
	assert.Equal(t, StateStale, s.State())
	assert.Same(t, g, s.Graph(), "a stale store keeps running its last graph")
}

func TestStore_RejectsUnsealedGraph(t *testing.T) {
	s := NewStore()
	g, err := pipeline.Build(testCtx(), entity.NewSnapshot(rec(0)), registry.New())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Replace(testCtx(), g, 1), ErrUnsealed)
	assert.ErrorIs(t, s.Replace(testCtx(), nil, 1), ErrUnsealed)
	assert.Nil(t, s.Graph())
}

func TestStore_CycleKeepsPreviousGraph(t *testing.T) {
	s := NewStore()
	good := sealed(t, rec(0), rec(1, 0))
	require.NoError(t, s.Replace(testCtx(), good, 1))

	_, err := pipeline.Rebuild(testCtx(), entity.NewSnapshot(rec(0, 1), rec(1, 0)), registry.New())
	require.ErrorIs(t, err, pipeline.ErrCycle)
	s.MarkStale()

	var ran *pipeline.Graph
	require.NoError(t, s.Scope(testCtx(), func(_ context.Context, g *pipeline.Graph) error {
		ran = g
		return nil
	}))
	assert.Same(t, good, ran)
	assert.Equal(t, StateStale, s.State())
}

func TestStore_ScopeExcludesReplace(t *testing.T) {
	s := NewStore()
	first := sealed(t, rec(0))
	second := sealed(t, rec(1))
	require.NoError(t, s.Replace(testCtx(), first, 1))

	inScope := make(chan struct{})
	release := make(chan struct{})
	replaced := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Scope(testCtx(), func(_ context.Context, g *pipeline.Graph) error {
			close(inScope)
			<-release
			assert.Same(t, first, g)
			return nil
		})
	}()

	<-inScope
	go func() {
		_ = s.Replace(testCtx(), second, 2)
		close(replaced)
	}()

	select {
	case <-replaced:
		t.Fatal("Replace completed while a run held the graph")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	<-replaced
	assert.Same(t, second, s.Graph())
}

func TestStore_ScopeRunsOneAtATime(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(testCtx(), sealed(t, rec(0)), 1))

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
		wg       sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Scope(testCtx(), func(context.Context, *pipeline.Graph) error {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)
				assert.Equal(t, StateCurrent, s.Status().State, "status stays readable during a run")

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestStore_ScopePropagatesError(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(testCtx(), sealed(t, rec(0)), 1))

	boom := errors.New("boom")
	err := s.Scope(testCtx(), func(context.Context, *pipeline.Graph) error { return boom })
	assert.ErrorIs(t, err, boom)
}
