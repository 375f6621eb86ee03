package reconcile

import (
	"context"
	"os"
	"testing"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/prompt"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newController(path string, force bool, dp provider.Provider, confirmer Confirmer, sm state.Manager) *Controller {
	cfg := testConfig(path, force)
	m := metrics.New(false)
	engine := NewEngine(cfg, dp, &MockResolver{v4: publicV4, v6: publicV6}, m)
	return NewController(cfg, engine, dp, confirmer, sm, m)
}

func TestCommitCorrection(t *testing.T) {
	path := writeInventory(t, "z1:\n  - r1\n")
	dp := &MockProvider{
		zones:   []provider.Zone{zoneZ()},
		records: []provider.Record{recordA("r1", "www.example.com", "198.51.100.1")},
	}
	c := newController(path, true, dp, nil, &MockStateManager{})

	before, err := c.engine.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(before.Mismatches))

	summary, err := c.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Mismatched)
	require.Len(t, dp.updates, 1)
	assert.Equal(t, updateCall{ZoneID: "z1", RecordID: "r1", Content: "203.0.113.1"}, dp.updates[0])

	after, err := c.engine.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(after.Matches))
	assert.Empty(t, after.Mismatches)

	// a second commit has nothing left to do
	summary, err = c.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Len(t, dp.updates, 1)
}

func TestUpdateCallCount(t *testing.T) {
	path := writeInventory(t, "z1:\n  - m1\n  - m2\n  - m3\n  - ok1\n  - ok2\n  - gone\n")
	dp := &StrictProvider{}
	c := newController(path, true, dp, nil, &MockStateManager{})

	result := Result{
		Matches: []provider.Record{
			recordA("ok1", "ok1.example.com", "203.0.113.1"),
			recordA("ok2", "ok2.example.com", "203.0.113.1"),
		},
		Mismatches: []provider.Record{
			recordA("m1", "m1.example.com", "198.51.100.1"),
			recordA("m2", "m2.example.com", "198.51.100.1"),
			recordAAAA("m3", "m3.example.com", "2001:db8::99"),
		},
		Invalid: []inventory.Pair{{Zone: "z1", Record: "gone"}},
		IPv4:    publicV4,
		IPv6:    publicV6,
	}
	dp.On("UpdateRecord", mock.Anything, "token", "z1", "m1", "203.0.113.1").Return(nil).Once()
	dp.On("UpdateRecord", mock.Anything, "token", "z1", "m2", "203.0.113.1").Return(errUpdate).Once()
	dp.On("UpdateRecord", mock.Anything, "token", "z1", "m3", "2001:db8::1").Return(nil).Once()

	fixed, err := c.Update(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"m1": {}, "m3": {}}, fixed)
	dp.AssertExpectations(t)
	dp.AssertNumberOfCalls(t, "UpdateRecord", 3)
}

func TestUpdateRecordsPatchesInState(t *testing.T) {
	dp := &StrictProvider{}
	sm := &MockStateManager{}
	c := newController("unused.yaml", true, dp, nil, sm)
	dp.On("UpdateRecord", mock.Anything, "token", "z1", "r1", "203.0.113.1").Return(nil)

	_, err := c.Update(context.Background(), Result{
		Mismatches: []provider.Record{recordA("r1", "www.example.com", "198.51.100.1")},
		IPv4:       publicV4,
	})
	require.NoError(t, err)
	require.Contains(t, sm.state.Records, "r1")
	assert.Equal(t, "203.0.113.1", sm.state.Records["r1"].Content)
	assert.Equal(t, "www.example.com", sm.state.Records["r1"].Name)
}

func TestUpdateConfirmation(t *testing.T) {
	result := Result{
		Mismatches: []provider.Record{
			recordA("r1", "a.example.com", "198.51.100.1"),
			recordA("r2", "b.example.com", "198.51.100.1"),
		},
		IPv4: publicV4,
	}

	t.Run("declined", func(t *testing.T) {
		dp := &StrictProvider{}
		confirmer := &MockConfirmer{answer: false}
		c := newController("unused.yaml", false, dp, confirmer, &MockStateManager{})

		fixed, err := c.Update(context.Background(), result)
		require.NoError(t, err)
		assert.Empty(t, fixed)
		assert.Equal(t, []string{"Update 2 mismatched records?"}, confirmer.questions)
		dp.AssertNotCalled(t, "UpdateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("aborted", func(t *testing.T) {
		dp := &StrictProvider{}
		c := newController("unused.yaml", false, dp, &MockConfirmer{err: prompt.ErrAbort}, &MockStateManager{})

		_, err := c.Update(context.Background(), result)
		assert.ErrorIs(t, err, prompt.ErrAbort)
		dp.AssertNotCalled(t, "UpdateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepted once for the batch", func(t *testing.T) {
		dp := &StrictProvider{}
		dp.On("UpdateRecord", mock.Anything, "token", "z1", mock.Anything, "203.0.113.1").Return(nil)
		confirmer := &MockConfirmer{answer: true}
		c := newController("unused.yaml", false, dp, confirmer, &MockStateManager{})

		fixed, err := c.Update(context.Background(), result)
		require.NoError(t, err)
		assert.Len(t, fixed, 2)
		assert.Len(t, confirmer.questions, 1)
	})
}

func TestPruneZoneCleanup(t *testing.T) {
	path := writeInventory(t, "z1:\n  - r2\nz2:\n  - keep\n")
	c := newController(path, true, &StrictProvider{}, nil, &MockStateManager{})

	inv, err := c.Prune(context.Background(), Result{
		Invalid: []inventory.Pair{{Zone: "z1", Record: "r2"}},
	})
	require.NoError(t, err)
	assert.False(t, inv.Contains("z1", "r2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "z1")

	loaded, err := inventory.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Zone{{Name: "z2", Records: []string{"keep"}}}, loaded.Zones())
}

func TestPruneAnnotatesFromSnapshot(t *testing.T) {
	path := writeInventory(t, "z1:\n  - r1\n  - r2\n")
	c := newController(path, true, &StrictProvider{}, nil, &MockStateManager{})

	_, err := c.Prune(context.Background(), Result{
		Invalid: []inventory.Pair{{Zone: "z1", Record: "r2"}},
		Snapshot: &provider.Snapshot{
			Zones:   []provider.Zone{zoneZ()},
			Records: []provider.Record{recordA("r1", "www.example.com", "203.0.113.1")},
		},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "r1 # 'www.example.com'")
}

func TestPruneDeclinedLeavesFile(t *testing.T) {
	content := "z1:\n  - r2\n"
	path := writeInventory(t, content)
	confirmer := &MockConfirmer{answer: false}
	c := newController(path, false, &StrictProvider{}, confirmer, &MockStateManager{})

	inv, err := c.Prune(context.Background(), Result{Invalid: []inventory.Pair{{Zone: "z1", Record: "r2"}}})
	require.NoError(t, err)
	assert.True(t, inv.Contains("z1", "r2"))
	assert.Equal(t, []string{"Prune 1 invalid records?"}, confirmer.questions)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestCommitSummary(t *testing.T) {
	path := writeInventory(t, "z1:\n  - ok\n  - stale\n  - broken\n  - gone\n")
	dp := &MockProvider{
		zones: []provider.Zone{zoneZ()},
		records: []provider.Record{
			recordA("ok", "ok.example.com", "203.0.113.1"),
			recordA("stale", "stale.example.com", "198.51.100.1"),
			recordA("broken", "broken.example.com", "198.51.100.1"),
		},
		updateErrs: map[string]error{"broken": errUpdate},
	}
	sm := &MockStateManager{state: state.State{Addresses: state.Addresses{V4: "198.51.100.1"}}}
	c := newController(path, true, dp, nil, sm)

	summary, err := c.Commit(context.Background())
	require.NoError(t, err, "leftover mismatches are not an error")
	assert.Equal(t, Summary{
		Matched:    1,
		Updated:    1,
		Mismatched: 1,
		Pruned:     1,
		Invalid:    0,
		Failures:   summary.Failures,
	}, summary)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "broken", summary.Failures[0].Record.ID)
	assert.Equal(t, "203.0.113.1", sm.state.Addresses.V4)

	loaded, err := inventory.Load(path)
	require.NoError(t, err)
	assert.False(t, loaded.Contains("z1", "gone"))
	assert.True(t, loaded.Contains("z1", "broken"))
}

func TestRunUpdateOnly(t *testing.T) {
	path := writeInventory(t, "z1:\n  - gone\n")
	dp := &MockProvider{zones: []provider.Zone{zoneZ()}}
	c := newController(path, true, dp, nil, &MockStateManager{})

	summary, err := c.Run(context.Background(), Ops{Update: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 0, summary.Pruned)

	loaded, err := inventory.Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Contains("z1", "gone"))
}

func TestCommitWithoutConfirmer(t *testing.T) {
	path := writeInventory(t, "z1:\n  - r1\n")
	dp := &MockProvider{
		zones:   []provider.Zone{zoneZ()},
		records: []provider.Record{recordA("r1", "www.example.com", "198.51.100.1")},
	}
	c := newController(path, false, dp, nil, &MockStateManager{})

	_, err := c.Commit(context.Background())
	assert.Error(t, err)
	assert.Empty(t, dp.updates)
}
