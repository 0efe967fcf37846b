package pcie

import "fmt"

// MockBackend is an in-memory Backend, kept for tests in the manner of the
// teacher's pkg/pci_sysfs_mock.go fixture devices: a map of BDF to
// config-space bytes instead of a real sysfs/proc tree.
type MockBackend struct {
	devices map[BDF][]byte
	order   []BDF
	opened  map[BDF]bool
}

// NewMockBackend returns an empty MockBackend. Use AddDevice to populate it.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		devices: map[BDF][]byte{},
		opened:  map[BDF]bool{},
	}
}

// AddDevice registers dev with the given config-space bytes, copied into a
// zero-filled 4096-byte buffer (the extended config space size) so ecap
// walks past any populated region read as all-zero, terminating cleanly.
// Bytes of config beyond 4096 are dropped. Calling AddDevice again for a BDF already present replaces its
// config space.
func (b *MockBackend) AddDevice(dev BDF, config []byte) {
	if _, exists := b.devices[dev]; !exists {
		b.order = append(b.order, dev)
	}
	buf := make([]byte, 4096)
	copy(buf, config)
	b.devices[dev] = buf
}

// MutateConfig applies fn to dev's stored config space in place, for tests
// simulating a status register changing between polls. It panics if dev
// was never added, which indicates a test bug rather than a runtime
// condition.
func (b *MockBackend) MutateConfig(dev BDF, fn func(config []byte)) {
	cfg, ok := b.devices[dev]
	if !ok {
		panic(fmt.Sprintf("pcie: MutateConfig on unknown device %s", dev))
	}
	fn(cfg)
}

func (b *MockBackend) Enumerate() ([]BDF, error) {
	out := make([]BDF, len(b.order))
	copy(out, b.order)
	return out, nil
}

func (b *MockBackend) Open(dev BDF) (*Handle, error) {
	cfg, ok := b.devices[dev]
	if !ok {
		return nil, fmt.Errorf("pcie: mock device %s not found", dev)
	}
	b.opened[dev] = true
	return &Handle{mem: cfg}, nil
}

func (b *MockBackend) Close(h *Handle) error {
	return nil
}
