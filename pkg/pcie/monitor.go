package pcie

import (
	"fmt"
	"time"

	"pcie-monitor/internal/logging"
)

// Options configures a Monitor. It is the Go-native equivalent of the
// original plugin's pcie_config_t, populated by internal/config from YAML.
type Options struct {
	// Source selects the access backend: "sysfs" (default), "proc", or
	// anything else, which disables device polling entirely.
	Source string
	// AccessDir overrides the default sysfs/proc PCI root.
	AccessDir string

	ReportMasked            bool
	PersistentNotifications bool

	ReadLog       bool
	LogFile       string
	FirstFullRead bool
	Parsers       []ParserConfig // empty => install the default parser

	// Host is stamped onto every notification. Host-name discovery is an
	// external collaborator's job (§1); the harness resolves it once and
	// passes it in here.
	Host string

	// InterfaceResolver optionally enriches notifications for devices
	// bound to a network driver with "interface" and "driver" annotations. Nil
	// disables the lookup.
	InterfaceResolver InterfaceResolver
}

func (o Options) readDevices() bool {
	switch o.Source {
	case "sysfs", "":
		return true
	case "proc":
		return true
	default:
		return false
	}
}

func (o Options) backend() Backend {
	switch o.Source {
	case "proc":
		return NewProcBackend(o.AccessDir)
	default:
		return NewSysfsBackend(o.AccessDir)
	}
}

// Monitor owns the device list, the parser table, and the differ/shaper
// policy derived from Options. It is the single owning context the
// original plugin split across process-wide globals (§9 design notes).
type Monitor struct {
	backend Backend
	devices []*Device
	differ  statusDiffer

	readLog bool
	jobs    []*parserJob

	host     string
	resolver InterfaceResolver
	readDevs bool
}

// NewMonitor validates opts and, for every enabled data source, performs
// the one-time bootstrap work (§4.G): enumerate devices, preprocess them,
// and install parser jobs. It returns an error — fatal at init, per §7 —
// when configuration is invalid, enumeration fails, or zero PCIe devices
// survive preprocessing.
func NewMonitor(opts Options) (*Monitor, error) {
	if !opts.readDevices() && !opts.ReadLog {
		return nil, fmt.Errorf("pcie: not configured for any source of data")
	}

	m := &Monitor{
		readLog:  opts.ReadLog,
		host:     opts.Host,
		resolver: opts.InterfaceResolver,
		differ: statusDiffer{
			reportMasked: opts.ReportMasked,
			persistent:   opts.PersistentNotifications,
		},
		readDevs: opts.readDevices(),
	}

	if m.readDevs {
		m.backend = opts.backend()
		bdfs, err := m.backend.Enumerate()
		if err != nil {
			return nil, fmt.Errorf("pcie: failed to find devices: %w", err)
		}

		for _, bdf := range bdfs {
			dev := newDevice(bdf)
			survives, err := preprocess(m.backend, dev)
			if err != nil {
				logging.WithError(err).WithField("device", bdf).Warn("pcie: failed to open device during preprocessing")
				continue
			}
			if !survives {
				logging.WithField("device", bdf).Debug("pcie: not a PCI Express device")
				continue
			}
			if dev.EcapAER < 0 {
				logging.WithField("device", bdf).Info("pcie: device is not AER capable")
			}
			m.devices = append(m.devices, dev)
		}

		if len(m.devices) == 0 {
			return nil, fmt.Errorf("pcie: no PCIe devices found in %s", opts.AccessDir)
		}
	}

	if opts.ReadLog {
		parsers := opts.Parsers
		if len(parsers) == 0 {
			parsers = []ParserConfig{DefaultParserConfig()}
		}
		for _, pc := range parsers {
			job, err := newParserJob(opts.LogFile, pc, opts.FirstFullRead)
			if err != nil {
				return nil, fmt.Errorf("pcie: failed to initialize %s parser: %w", pc.Name, err)
			}
			m.jobs = append(m.jobs, job)
		}
	}

	return m, nil
}

// Devices returns the surviving device list, in enumeration order. Callers
// must not mutate it.
func (m *Monitor) Devices() []*Device {
	return m.devices
}

// Poll performs the device pass then the log pass, in series, and
// dispatches every notification either pass produces to sink. It returns
// an error if any device could not be opened or a log file could not be
// read. It is the core's single
// entry point: the host decides cadence by calling Poll on its own
// schedule (§5). Poll itself never blocks beyond the ordinary syscalls
// each pass performs.
func (m *Monitor) Poll(sink NotificationSink) error {
	var overallErr error

	if m.readDevs {
		notes, err := m.pollDevices()
		for _, n := range notes {
			m.dispatch(sink, n)
		}
		if err != nil {
			overallErr = err
		}
	}

	if !m.readLog {
		return overallErr
	}

	for _, job := range m.jobs {
		msgs, err := job.read()
		if err != nil {
			m.dispatch(sink, Notification{
				Severity: SeverityFailure,
				Message:  "Failed to read from log file",
			})
			return fmt.Errorf("pcie: failed to parse %s messages from %s: %w", job.name, job.path, err)
		}
		for _, msg := range msgs {
			m.dispatch(sink, shapeLogMessage(msg))
		}
	}

	return overallErr
}

// pollDevices runs the Device Poll Loop (§4.D): for every surviving device,
// open, snapshot, diff, close, sequentially, never skipping a device on
// another device's failure.
func (m *Monitor) pollDevices() ([]Notification, error) {
	var out []Notification
	var anyFailed bool

	for _, dev := range m.devices {
		h, err := m.backend.Open(dev.BDF)
		if err != nil {
			n := Notification{
				PluginInstance: dev.BDF.String(),
				Severity:       SeverityFailure,
				Message:        "Failed to read device status",
			}
			m.annotateInterface(dev, &n)
			out = append(out, n)
			anyFailed = true
			continue
		}

		var devNotes []Notification
		m.differ.deviceStatusPass(h, dev, &devNotes)
		if dev.EcapAER >= 0 {
			m.differ.aerUncorrectablePass(h, dev, &devNotes)
			m.differ.aerCorrectablePass(h, dev, &devNotes)
		}

		if err := m.backend.Close(h); err != nil {
			logging.WithError(err).WithField("device", dev.BDF).Warn("pcie: failed to close device")
		}

		for i := range devNotes {
			devNotes[i].PluginInstance = dev.BDF.String()
			m.annotateInterface(dev, &devNotes[i])
		}
		out = append(out, devNotes...)
	}

	if anyFailed {
		return out, fmt.Errorf("pcie: failed to read devices state")
	}
	return out, nil
}

// annotateInterface best-effort enriches a notification with the kernel
// driver name bound to dev's network interface, when a resolver is
// configured. Lookup failures never fail the poll (§4.A expansion).
func (m *Monitor) annotateInterface(dev *Device, n *Notification) {
	if m.resolver == nil {
		return
	}
	iface, driver, ok := m.resolver.Resolve(dev.BDF)
	if !ok {
		return
	}
	if n.Meta == nil {
		n.Meta = map[string]string{}
	}
	n.Meta["interface"] = iface
	n.Meta["driver"] = driver
}

func (m *Monitor) dispatch(sink NotificationSink, n Notification) {
	n.Host = m.host
	n.Plugin = pluginName
	n.Type = typeName
	n.Time = time.Now()
	sink.Dispatch(n)
}
