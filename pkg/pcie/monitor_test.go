package pcie

import "testing"

func buildDeviceConfig(expOffset int, aerCapable bool) []byte {
	buf := make([]byte, 4096)
	putCapList(buf, expOffset)
	if aerCapable {
		putAERCap(buf)
	}
	return buf
}

func TestNewMonitorRequiresASource(t *testing.T) {
	_, err := NewMonitor(Options{Source: "none"})
	if err == nil {
		t.Fatal("NewMonitor with no source enabled: want error, got nil")
	}
}

func TestPreprocessSurvivesOnlyExpressCapableDevices(t *testing.T) {
	backend := NewMockBackend()
	expressDev := BDF{Bus: 1}
	plainDev := BDF{Bus: 2}
	backend.AddDevice(expressDev, buildDeviceConfig(0x40, true))
	backend.AddDevice(plainDev, make([]byte, 4096)) // no capability list at all

	m := &Monitor{backend: backend, readDevs: true}
	bdfs, err := backend.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	for _, bdf := range bdfs {
		dev := newDevice(bdf)
		survives, err := preprocess(backend, dev)
		if err != nil {
			t.Fatalf("preprocess(%s): %v", bdf, err)
		}
		if survives {
			m.devices = append(m.devices, dev)
		}
	}

	if len(m.devices) != 1 {
		t.Fatalf("got %d surviving devices, want 1", len(m.devices))
	}
	if m.devices[0].BDF != expressDev {
		t.Errorf("surviving device = %s, want %s", m.devices[0].BDF, expressDev)
	}
	if m.devices[0].EcapAER < 0 {
		t.Errorf("expected AER capability to be found")
	}
}

func TestMonitorPollDispatchesStampedNotifications(t *testing.T) {
	backend := NewMockBackend()
	dev := BDF{Bus: 1}
	cfg := buildDeviceConfig(0x40, false)
	cfg[0x40+devStatusOffset] = devStatusCED
	backend.AddDevice(dev, cfg)

	m := &Monitor{backend: backend, readDevs: true, host: "test-host"}
	bdfs, _ := backend.Enumerate()
	for _, bdf := range bdfs {
		d := newDevice(bdf)
		if survives, _ := preprocess(backend, d); survives {
			m.devices = append(m.devices, d)
		}
	}

	sink := &collectingSink{}
	if err := m.Poll(sink); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if len(sink.notes) == 0 {
		t.Fatal("expected at least one notification")
	}
	n := sink.notes[0]
	if n.Host != "test-host" || n.Plugin != pluginName || n.Type != typeName {
		t.Errorf("notification not stamped correctly: %+v", n)
	}
	if n.PluginInstance != dev.String() {
		t.Errorf("PluginInstance = %q, want %q", n.PluginInstance, dev.String())
	}
}

type collectingSink struct {
	notes []Notification
}

func (s *collectingSink) Dispatch(n Notification) {
	s.notes = append(s.notes, n)
}
