package reconcile

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/state"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStateManager struct {
	state state.State
	err   error
}

func (m *MockStateManager) LoadState(ctx context.Context) (state.State, error) { return m.state, m.err }
func (m *MockStateManager) SaveState(ctx context.Context, s state.State) error {
	m.state = s
	return m.err
}
func (m *MockStateManager) Close() error { return nil }

type updateCall struct {
	ZoneID   string
	RecordID string
	Content  string
}

// MockProvider keeps records in memory; updates change later listings.
type MockProvider struct {
	mu         sync.Mutex
	zones      []provider.Zone
	records    []provider.Record
	zonesErr   error
	updateErrs map[string]error
	updates    []updateCall
	listings   int
}

func (m *MockProvider) Zones(ctx context.Context, token string) ([]provider.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings++
	return append([]provider.Zone(nil), m.zones...), m.zonesErr
}

func (m *MockProvider) Records(ctx context.Context, token string, zones []provider.Zone) ([]provider.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Record(nil), m.records...), nil
}

func (m *MockProvider) UpdateRecord(ctx context.Context, token, zoneID, recordID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, updateCall{ZoneID: zoneID, RecordID: recordID, Content: content})
	if err := m.updateErrs[recordID]; err != nil {
		return err
	}
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].Content = content
		}
	}
	return nil
}

// StrictProvider fails the test on any call that was not expected.
type StrictProvider struct {
	mock.Mock
}

func (m *StrictProvider) Zones(ctx context.Context, token string) ([]provider.Zone, error) {
	args := m.Called(ctx, token)
	zones, _ := args.Get(0).([]provider.Zone)
	return zones, args.Error(1)
}

func (m *StrictProvider) Records(ctx context.Context, token string, zones []provider.Zone) ([]provider.Record, error) {
	args := m.Called(ctx, token, zones)
	records, _ := args.Get(0).([]provider.Record)
	return records, args.Error(1)
}

func (m *StrictProvider) UpdateRecord(ctx context.Context, token, zoneID, recordID, content string) error {
	args := m.Called(ctx, token, zoneID, recordID, content)
	return args.Error(0)
}

type MockResolver struct {
	v4, v6  netip.Addr
	err     error
	v4Calls int
	v6Calls int
}

func (m *MockResolver) ResolveV4(ctx context.Context) (netip.Addr, error) {
	m.v4Calls++
	if m.err != nil {
		return netip.Addr{}, m.err
	}
	return m.v4, nil
}

func (m *MockResolver) ResolveV6(ctx context.Context) (netip.Addr, error) {
	m.v6Calls++
	if m.err != nil {
		return netip.Addr{}, m.err
	}
	return m.v6, nil
}

type MockConfirmer struct {
	answer    bool
	err       error
	questions []string
}

func (m *MockConfirmer) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	m.questions = append(m.questions, question)
	return m.answer, m.err
}

var errUpdate = errors.New("update rejected")

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(path string, force bool) config.Config {
	return config.Config{
		Token:         "token",
		InventoryPath: path,
		Force:         force,
	}
}
