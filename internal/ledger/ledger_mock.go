package ledger

import (
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetLedgerStore implements the StoreManager interface.
func (m *MockStoreManager) GetLedgerStore() contract.LedgerStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.LedgerStore)
	return store
}

// MockLedgerStore is a mock implementation of LedgerStore for testing.
type MockLedgerStore struct {
	mock.Mock
}

var _ contract.LedgerStore = &MockLedgerStore{} // Compile-time check

// BeginRun implements the LedgerStore interface.
func (m *MockLedgerStore) BeginRun(command string, startTime time.Time, params map[string]any) (string, error) {
	args := m.Called(command, startTime, params)
	return args.String(0), args.Error(1)
}

// RecordEntity implements the LedgerStore interface.
func (m *MockLedgerStore) RecordEntity(runID string, outcome schema.EntityOutcome) error {
	args := m.Called(runID, outcome)
	return args.Error(0)
}

// EndRun implements the LedgerStore interface.
func (m *MockLedgerStore) EndRun(runID string, endTime time.Time, status schema.RunStatus, ok, failed int) error {
	args := m.Called(runID, endTime, status, ok, failed)
	return args.Error(0)
}

// GetStatus implements the LedgerStore interface.
func (m *MockLedgerStore) GetStatus() (schema.LedgerStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.LedgerStatus), args.Error(1)
}

// ListRuns implements the LedgerStore interface.
func (m *MockLedgerStore) ListRuns(limit int) ([]schema.RunRecord, error) {
	args := m.Called(limit)
	runs, _ := args.Get(0).([]schema.RunRecord)
	return runs, args.Error(1)
}

// ListOutcomes implements the LedgerStore interface.
func (m *MockLedgerStore) ListOutcomes(runID string) ([]schema.EntityOutcome, error) {
	args := m.Called(runID)
	outcomes, _ := args.Get(0).([]schema.EntityOutcome)
	return outcomes, args.Error(1)
}

// Close implements the LedgerStore interface.
func (m *MockLedgerStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
