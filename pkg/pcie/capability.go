package pcie

const (
	pciStatusOffset     = 0x06 // PCI Status register low byte
	pciStatusCapList    = 0x10 // "Capabilities List" bit
	pciCapPointerOffset = 0x34

	pciCapIDExpress = 0x10 // PCI Express capability ID
	pciCapIDUnused  = 0xff // unused list cell sentinel

	ecapOffset   = 0x100 // extended capabilities always start here
	ecapIDAER    = 0x0001
	maxCapWalk   = 256 // boundary guard: property 9
)

// findExpressCapability walks the standard (legacy, 8-bit pointer) PCI
// capability list looking for the PCI Express capability. It returns -1 if
// the device has no capability list, or none of its entries is PCI
// Express.
func findExpressCapability(h *Handle) int {
	status := read8(h, pciStatusOffset)
	if status&pciStatusCapList == 0 {
		return -1
	}

	pos := int(read8(h, pciCapPointerOffset) &^ 0x03)
	for i := 0; pos != 0 && i < maxCapWalk; i++ {
		id := read8(h, int64(pos))
		if id == pciCapIDUnused {
			break
		}
		if id == pciCapIDExpress {
			return pos
		}
		pos = int(read8(h, int64(pos+1)) &^ 0x03)
	}
	return -1
}

// findAERCapability walks the extended capability list (32-bit headers,
// starting fixed at offset 0x100) looking for Advanced Error Reporting. It
// returns -1 if absent.
func findAERCapability(h *Handle) int {
	pos := ecapOffset
	for i := 0; i < maxCapWalk; i++ {
		header := read32(h, int64(pos))
		id := int(header & 0xffff)
		next := int((header >> 20) & 0xfff)

		if id == ecapIDAER {
			return pos
		}
		if next == 0 || next <= ecapOffset {
			return -1
		}
		pos = next
	}
	return -1
}
