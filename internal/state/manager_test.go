package state

import (
	"context"
	"testing"

	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := New(dir, metrics.New(false))
	require.NoError(t, err)

	empty, err := m.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Records)
	assert.Equal(t, Addresses{}, empty.Addresses)

	want := State{
		Addresses: Addresses{V4: "203.0.113.1", V6: "2001:db8::1", LastSeen: 100},
		Records: map[string]RecordState{
			"r1": {Zone: "z1", Name: "www.example.com", Content: "203.0.113.1", LastPatched: 100},
			"r2": {Zone: "z1", Name: "v6.example.com", Content: "2001:db8::1", LastPatched: 100},
		},
	}
	require.NoError(t, m.SaveState(ctx, want))
	require.NoError(t, m.Close())

	// reopen to prove persistence
	m, err = New(dir, metrics.New(false))
	require.NoError(t, err)
	defer m.Close()

	got, err := m.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	delete(want.Records, "r2")
	require.NoError(t, m.SaveState(ctx, want))
	got, err = m.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNop(t *testing.T) {
	m, err := New("", metrics.New(false))
	require.NoError(t, err)

	require.NoError(t, m.SaveState(context.Background(), State{Addresses: Addresses{V4: "1.2.3.4"}}))
	got, err := m.LoadState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Addresses.V4)
	assert.NotNil(t, got.Records)
	assert.NoError(t, m.Close())
}

func TestAddressChanges(t *testing.T) {
	prev := Addresses{V4: "1.1.1.1", V6: "::1"}

	assert.Empty(t, Addresses{V4: "1.1.1.1", V6: "::1"}.Changes(prev))
	assert.Empty(t, Addresses{V4: "2.2.2.2"}.Changes(Addresses{}))

	changes := Addresses{V4: "2.2.2.2", V6: "::1"}.Changes(prev)
	assert.Equal(t, map[string][2]string{"ipv4": {"1.1.1.1", "2.2.2.2"}}, changes)
}
