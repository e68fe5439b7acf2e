package rv64

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

var busEndian = binary.LittleEndian

// Device is a memory-mapped peripheral reachable through the bus.
// offset is relative to the device's own interval; length is one of
// {1, 2, 4, 8}. Update advances the device's internal clock by the
// given number of ticks (a no-op for devices with no periodic state).
type Device interface {
	Read(offset uint64, length int) (uint64, error)
	Write(offset uint64, value uint64, length int) error
	Update(ticks uint64)
	Name() string
}

// interval is one entry in the bus's sorted address-range map.
type interval struct {
	start  uint64
	length uint64
	device Device
}

func (iv interval) end() uint64 { return iv.start + iv.length }

// Bus routes byte/halfword/word/doubleword accesses to the device
// whose interval contains the address, and owns the single LR/SC
// reservation shared across every hart attached to it.
type Bus struct {
	mu        sync.Mutex
	intervals []interval // kept sorted by start; disjoint by construction

	reservationValid bool
	reservationAddr  uint64
}

// NewBus creates an empty bus with no devices mapped.
func NewBus() *Bus {
	return &Bus{}
}

// Map adds a device at [start, start+length). It panics on overlap
// with an existing mapping — an overlapping address map is a
// configuration bug in the embedder, not a guest-triggerable fault.
func (b *Bus) Map(start, length uint64, dev Device) {
	b.mu.Lock()
	defer b.mu.Unlock()

	iv := interval{start: start, length: length, device: dev}
	i := sort.Search(len(b.intervals), func(i int) bool { return b.intervals[i].start >= start })
	if i > 0 && b.intervals[i-1].end() > start {
		panic(fmt.Sprintf("rv64: device %q overlaps %q", dev.Name(), b.intervals[i-1].device.Name()))
	}
	if i < len(b.intervals) && iv.end() > b.intervals[i].start {
		panic(fmt.Sprintf("rv64: device %q overlaps %q", dev.Name(), b.intervals[i].device.Name()))
	}

	b.intervals = append(b.intervals, interval{})
	copy(b.intervals[i+1:], b.intervals[i:])
	b.intervals[i] = iv
}

// find locates the device interval containing addr via binary search.
func (b *Bus) find(addr uint64) (interval, bool) {
	i := sort.Search(len(b.intervals), func(i int) bool { return b.intervals[i].end() > addr })
	if i < len(b.intervals) && b.intervals[i].start <= addr {
		return b.intervals[i], true
	}
	return interval{}, false
}

// Read performs a length-byte read at addr, length in {1,2,4,8}.
func (b *Bus) Read(addr uint64, length int) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iv, ok := b.find(addr)
	if !ok {
		return 0, exception(CauseLoadAccessFault, addr)
	}
	v, err := iv.device.Read(addr-iv.start, length)
	if err != nil {
		return 0, exception(CauseLoadAccessFault, addr)
	}
	return v, nil
}

// Write performs a length-byte write at addr and clears the LR/SC
// reservation if it targets the reserved line (the naturally aligned
// doubleword holding the reserved address).
func (b *Bus) Write(addr uint64, value uint64, length int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	iv, ok := b.find(addr)
	if !ok {
		return exception(CauseStoreAccessFault, addr)
	}
	if err := iv.device.Write(addr-iv.start, value, length); err != nil {
		return exception(CauseStoreAccessFault, addr)
	}
	if b.reservationValid && addr&^7 == b.reservationAddr&^7 {
		b.reservationValid = false
	}
	return nil
}

func (b *Bus) Read8(addr uint64) (uint8, error) {
	v, err := b.Read(addr, 1)
	return uint8(v), err
}
func (b *Bus) Read16(addr uint64) (uint16, error) {
	v, err := b.Read(addr, 2)
	return uint16(v), err
}
func (b *Bus) Read32(addr uint64) (uint32, error) {
	v, err := b.Read(addr, 4)
	return uint32(v), err
}
func (b *Bus) Read64(addr uint64) (uint64, error) {
	return b.Read(addr, 8)
}

func (b *Bus) Write8(addr uint64, v uint8) error   { return b.Write(addr, uint64(v), 1) }
func (b *Bus) Write16(addr uint64, v uint16) error { return b.Write(addr, uint64(v), 2) }
func (b *Bus) Write32(addr uint64, v uint32) error { return b.Write(addr, uint64(v), 4) }
func (b *Bus) Write64(addr uint64, v uint64) error { return b.Write(addr, v, 8) }

// LoadBytes copies data into the bus byte by byte starting at addr.
// Intended for boot-image placement by the caller, not guest code.
func (b *Bus) LoadBytes(addr uint64, data []byte) error {
	for i, v := range data {
		if err := b.Write8(addr+uint64(i), v); err != nil {
			return err
		}
	}
	return nil
}

// ReadRange copies length bytes starting at addr into a fresh slice;
// used by an outer signature-dump tool, not by the hart.
func (b *Bus) ReadRange(addr, length uint64) ([]byte, error) {
	out := make([]byte, length)
	for i := range out {
		v, err := b.Read8(addr + uint64(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Reserve records addr as the single outstanding LR reservation.
func (b *Bus) Reserve(addr uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservationValid = true
	b.reservationAddr = addr
}

// CheckAndClearReservation reports whether addr matches the
// outstanding reservation, clearing it either way (SC always consumes
// the reservation, success or failure).
func (b *Bus) CheckAndClearReservation(addr uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := b.reservationValid && b.reservationAddr == addr
	b.reservationValid = false
	return ok
}

// ClearReservation drops any outstanding reservation unconditionally —
// called on every trap.
func (b *Bus) ClearReservation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservationValid = false
}

// Update fans a tick out to every mapped device.
func (b *Bus) Update(ticks uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, iv := range b.intervals {
		iv.device.Update(ticks)
	}
}

// fetch reads 4 bytes for instruction fetch.
func (b *Bus) fetch(addr uint64) (uint32, error) {
	v, err := b.Read32(addr)
	if err != nil {
		return 0, exception(CauseInsnAccessFault, addr)
	}
	return v, nil
}

// memoryDevice is a flat RAM region backing the bulk of the address
// space; byte-addressed, little-endian, bounds-checked.
type memoryDevice struct {
	name string
	data []byte
}

// NewMemory creates a RAM device of the given size, to be mapped with Bus.Map.
func NewMemory(name string, size uint64) Device {
	return &memoryDevice{name: name, data: make([]byte, size)}
}

func (m *memoryDevice) Name() string { return m.name }

func (m *memoryDevice) Read(offset uint64, length int) (uint64, error) {
	if offset+uint64(length) > uint64(len(m.data)) {
		return 0, fmt.Errorf("rv64: %s: read out of bounds at 0x%x", m.name, offset)
	}
	switch length {
	case 1:
		return uint64(m.data[offset]), nil
	case 2:
		return uint64(busEndian.Uint16(m.data[offset:])), nil
	case 4:
		return uint64(busEndian.Uint32(m.data[offset:])), nil
	case 8:
		return busEndian.Uint64(m.data[offset:]), nil
	default:
		return 0, fmt.Errorf("rv64: %s: invalid read length %d", m.name, length)
	}
}

func (m *memoryDevice) Write(offset uint64, value uint64, length int) error {
	if offset+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("rv64: %s: write out of bounds at 0x%x", m.name, offset)
	}
	switch length {
	case 1:
		m.data[offset] = byte(value)
	case 2:
		busEndian.PutUint16(m.data[offset:], uint16(value))
	case 4:
		busEndian.PutUint32(m.data[offset:], uint32(value))
	case 8:
		busEndian.PutUint64(m.data[offset:], value)
	default:
		return fmt.Errorf("rv64: %s: invalid write length %d", m.name, length)
	}
	return nil
}

func (m *memoryDevice) Update(uint64) {}
