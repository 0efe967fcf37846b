package pcie

import (
	"os"
	"path/filepath"

	"github.com/safchain/ethtool"

	"pcie-monitor/internal/logging"
)

// InterfaceResolver maps a PCIe device to the network interface it backs,
// if any, and the kernel driver bound to that interface.
type InterfaceResolver interface {
	Resolve(dev BDF) (iface, driver string, ok bool)
}

// EthtoolResolver resolves interfaces by reading {AccessDir}/devices/<bdf>/net
// and querying the driver name via a single shared ethtool handle, in the
// manner of the teacher's cmd/sriovd/sriov_discovery.go global-handle reuse.
type EthtoolResolver struct {
	AccessDir string

	handle *ethtool.Ethtool
}

// NewEthtoolResolver returns a resolver rooted at accessDir (the sysfs PCI
// devices tree). The ethtool handle is opened lazily on first use.
func NewEthtoolResolver(accessDir string) *EthtoolResolver {
	if accessDir == "" {
		accessDir = defaultSysfsDir
	}
	return &EthtoolResolver{AccessDir: accessDir}
}

func (r *EthtoolResolver) ensureHandle() *ethtool.Ethtool {
	if r.handle != nil {
		return r.handle
	}
	h, err := ethtool.NewEthtool()
	if err != nil {
		logging.WithError(err).Debug("pcie: failed to create ethtool handle")
		return nil
	}
	r.handle = h
	return r.handle
}

func (r *EthtoolResolver) Resolve(dev BDF) (string, string, bool) {
	netDir := filepath.Join(r.AccessDir, "devices", dev.String(), "net")
	entries, err := os.ReadDir(netDir)
	if err != nil || len(entries) == 0 {
		return "", "", false
	}
	iface := entries[0].Name()

	h := r.ensureHandle()
	if h == nil {
		return iface, "", true
	}

	drv, err := h.DriverName(iface)
	if err != nil {
		logging.WithError(err).WithField("interface", iface).Debug("pcie: failed to query ethtool driver name")
		return iface, "", true
	}
	return iface, drv, true
}
