package pcie

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Handle is an open config-space file descriptor for one device. It is
// valid only between a successful Backend.Open and the matching Close.
// mem is set instead of f by MockBackend, whose config space lives in a
// plain byte slice rather than behind a file descriptor.
type Handle struct {
	f   *os.File
	mem []byte
}

// Backend enumerates PCI devices and reads their configuration space. The
// two concrete implementations (sysfs, proc) are chosen once at bootstrap;
// unlike the original C plugin's vtable of function pointers, callers hold
// a single Backend value rather than reassigning global function pointers.
type Backend interface {
	// Enumerate lists every device the backend can see. Failure here is
	// fatal at init (§4.A, §7).
	Enumerate() ([]BDF, error)

	// Open acquires a Handle for positional reads against dev's config
	// space. Failure is non-fatal: callers emit a per-device FAILURE
	// notification and continue (§4.A, §4.D).
	Open(dev BDF) (*Handle, error)

	// Close releases h. Errors are logged by the caller, never returned
	// as a reason to fail the poll (§4.A).
	Close(h *Handle) error
}

// Read performs a positional read of size bytes at pos. It returns an
// error iff fewer than size bytes were read — any short read, I/O error,
// or EOF is a failure. A short read zeroes buf; after an I/O error the
// contents of buf are unspecified. read8/read16/read32 return 0 on any
// failure.
func Read(h *Handle, buf []byte, pos int64) error {
	if h.mem != nil {
		return memRead(h.mem, buf, pos)
	}

	n, err := unix.Pread(int(h.f.Fd()), buf, pos)
	if err != nil {
		return fmt.Errorf("pcie: pread at %#x: %w", pos, err)
	}
	if n != len(buf) {
		for i := range buf {
			buf[i] = 0
		}
		return fmt.Errorf("pcie: short read at %#x: got %d of %d bytes", pos, n, len(buf))
	}
	return nil
}

func memRead(mem []byte, buf []byte, pos int64) error {
	if pos < 0 || pos+int64(len(buf)) > int64(len(mem)) {
		for i := range buf {
			buf[i] = 0
		}
		return fmt.Errorf("pcie: short read at %#x: config space is %d bytes", pos, len(mem))
	}
	copy(buf, mem[pos:pos+int64(len(buf))])
	return nil
}

func read8(h *Handle, pos int64) uint8 {
	var buf [1]byte
	if err := Read(h, buf[:], pos); err != nil {
		return 0
	}
	return buf[0]
}

func read16(h *Handle, pos int64) uint16 {
	var buf [2]byte
	if err := Read(h, buf[:], pos); err != nil {
		return 0
	}
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func read32(h *Handle, pos int64) uint32 {
	var buf [4]byte
	if err := Read(h, buf[:], pos); err != nil {
		return 0
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

const (
	defaultSysfsDir = "/sys/bus/pci"
	defaultProcDir  = "/proc/bus/pci"
)

// SysfsBackend accesses devices under {AccessDir}/devices/DDDD:BB:DD.F/config.
type SysfsBackend struct {
	AccessDir string
}

// NewSysfsBackend returns a SysfsBackend rooted at dir, or the default
// sysfs PCI root if dir is empty.
func NewSysfsBackend(dir string) *SysfsBackend {
	if dir == "" {
		dir = defaultSysfsDir
	}
	return &SysfsBackend{AccessDir: dir}
}

func (b *SysfsBackend) Enumerate() ([]BDF, error) {
	dir := filepath.Join(b.AccessDir, "devices")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pcie: cannot open dir %s to get devices list: %w", dir, err)
	}

	var devs []BDF
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		bdf, err := ParseBDF(name)
		if err != nil {
			continue
		}
		devs = append(devs, bdf)
	}
	return devs, nil
}

func (b *SysfsBackend) Open(dev BDF) (*Handle, error) {
	path := filepath.Join(b.AccessDir, "devices", dev.String(), "config")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pcie: failed to open file %s: %w", path, err)
	}
	return &Handle{f: f}, nil
}

func (b *SysfsBackend) Close(h *Handle) error {
	return h.f.Close()
}

// ProcBackend accesses devices under {AccessDir}/BB/DD.F, discovered from
// the single text file {AccessDir}/devices. Domain information is not
// carried by this encoding and is forced to 0 (§4.A, §9 open question).
type ProcBackend struct {
	AccessDir string
}

// NewProcBackend returns a ProcBackend rooted at dir, or the default proc
// PCI root if dir is empty.
func NewProcBackend(dir string) *ProcBackend {
	if dir == "" {
		dir = defaultProcDir
	}
	return &ProcBackend{AccessDir: dir}
}

func (b *ProcBackend) Enumerate() ([]BDF, error) {
	path := filepath.Join(b.AccessDir, "devices")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcie: cannot open file %s to get devices list: %w", path, err)
	}
	defer f.Close()

	var devs []BDF
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		slot, err := strconv.ParseUint(fields[0], 16, 16)
		if err != nil {
			continue
		}
		devs = append(devs, slotToBDF(uint16(slot)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pcie: error reading %s: %w", path, err)
	}
	return devs, nil
}

func (b *ProcBackend) Open(dev BDF) (*Handle, error) {
	path := filepath.Join(b.AccessDir, fmt.Sprintf("%02x", dev.Bus), fmt.Sprintf("%02x.%d", dev.Device, dev.Function))
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pcie: failed to open file %s: %w", path, err)
	}
	return &Handle{f: f}, nil
}

func (b *ProcBackend) Close(h *Handle) error {
	return h.f.Close()
}
