package wireguard

import (
	"log/slog"
	"sync"
)

// mockCall records a single method invocation on mockController.
type mockCall struct {
	Method string
	Args   []interface{}
}

// mockController is a test double for WGController.
// It records all calls and supports configurable error returns per method.
type mockController struct {
	mu sync.Mutex

	// Call records
	calls []mockCall

	// Configurable returns (set before test)
	replacePeersErr error
	device          *DeviceStatus
	deviceErr       error
}

func (m *mockController) ReplacePeers(iface string, peers []PeerConfig) error {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{Method: "ReplacePeers", Args: []interface{}{iface, peers}})
	err := m.replacePeersErr
	m.mu.Unlock()
	return err
}

func (m *mockController) Device(iface string) (*DeviceStatus, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{Method: "Device", Args: []interface{}{iface}})
	dev, err := m.device, m.deviceErr
	m.mu.Unlock()
	return dev, err
}

// callsFor returns all recorded calls for the given method name.
func (m *mockController) callsFor(method string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []mockCall
	for _, c := range m.calls {
		if c.Method == method {
			result = append(result, c)
		}
	}
	return result
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}
