package factory

import (
	"time"

	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-go/internal/storage"
	"github.com/mcoot/tictactoe-go/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MockRecords *mocks.MockRecords
}

// TestConfig returns a valid in-memory configuration
func TestConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:            3031,
			AllowedOrigin:   "*",
			ShutdownTimeout: time.Second,
		},
		Storage: config.StorageConfig{Type: config.StorageMemory},
		Records: config.RecordsConfig{BaseURL: "http://records.test", Timeout: time.Second},
		Logging: config.LoggingConfig{Level: "debug", Format: "console"},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

// NewTestApp creates an App configured for testing with mocked dependencies
// over in-memory storage
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New(), memory.NewBroker(), zap.NewNop())
}

// NewTestAppWithStorage creates a test App over the given shared store.
// Several test apps over one store behave like separate server processes.
func NewTestAppWithStorage(store storage.Storage, broker storage.Broker, logger *zap.Logger) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockRecords := mocks.NewMockRecords()

	app := newWithDependencies(TestConfig(), store, broker, mockRecords, mockClock, mockRandom, logger)

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MockRecords: mockRecords,
	}
}
