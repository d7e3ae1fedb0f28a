// Package memsys provides the emulator's backing store and the message
// protocol used to access it over ports.
package memsys

import "errors"

// Capacity units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Storage is a flat, addressable byte array. It backs the emulated flash
// contents. Units are allocated lazily so that a large capacity costs no
// memory until touched.
type Storage struct {
	unitSize uint64
	capacity uint64
	units    map[uint64][]byte
}

// NewStorage creates a Storage with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		units:    make(map[uint64][]byte),
	}
}

// Capacity returns the capacity of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// Read returns n bytes starting at address.
func (s *Storage) Read(address, n uint64) ([]byte, error) {
	res := make([]byte, n)

	offset := uint64(0)
	for offset < n {
		unit, err := s.unitFor(address + offset)
		if err != nil {
			return nil, err
		}

		base, inUnit := s.splitAddress(address + offset)
		chunk := min(n-offset, base+s.unitSize-(address+offset))

		copy(res[offset:offset+chunk], unit[inUnit:inUnit+chunk])
		offset += chunk
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	offset := uint64(0)
	for offset < uint64(len(data)) {
		unit, err := s.unitFor(address + offset)
		if err != nil {
			return err
		}

		base, inUnit := s.splitAddress(address + offset)
		chunk := min(uint64(len(data))-offset, base+s.unitSize-(address+offset))

		copy(unit[inUnit:inUnit+chunk], data[offset:offset+chunk])
		offset += chunk
	}

	return nil
}

func (s *Storage) unitFor(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("address beyond storage capacity")
	}

	base, _ := s.splitAddress(address)
	unit, ok := s.units[base]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.units[base] = unit
	}

	return unit, nil
}

func (s *Storage) splitAddress(address uint64) (base, inUnit uint64) {
	inUnit = address % s.unitSize
	base = address - inUnit
	return
}
