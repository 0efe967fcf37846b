package pcie

// Device is a device record: identity plus capability offsets and the
// last-seen register snapshots. Snapshots start at zero and are mutated
// only by the Status Differ, only after a successful read sequence.
type Device struct {
	BDF BDF

	// CapExp is the offset of the PCI Express capability in config
	// space, or -1 if the device has none. A device record only
	// survives preprocessing when CapExp >= 0.
	CapExp int

	// EcapAER is the offset of the AER extended capability, or -1 if
	// absent. AER checks are skipped when EcapAER < 0, but device-status
	// checks still run.
	EcapAER int

	deviceStatus        uint16
	uncorrectableErrors uint32
	correctableErrors   uint32
}

func newDevice(bdf BDF) *Device {
	return &Device{BDF: bdf, CapExp: -1, EcapAER: -1}
}

// preprocess opens dev once, locates its PCI Express and AER capabilities,
// and reports whether the device survives (has a PCI Express capability).
// Called once per device during bootstrap (§4.B).
func preprocess(backend Backend, dev *Device) (survives bool, err error) {
	h, err := backend.Open(dev.BDF)
	if err != nil {
		return false, err
	}
	defer backend.Close(h)

	dev.CapExp = findExpressCapability(h)
	if dev.CapExp < 0 {
		return false, nil
	}
	dev.EcapAER = findAERCapability(h)
	return true, nil
}
