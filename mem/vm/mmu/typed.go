package mmu

import (
	"encoding/binary"
)

// Word lists the value types that can be accessed in memory.
type Word interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// WidthOf returns the number of bytes of a word type.
func WidthOf[T Word]() uint64 {
	var v T
	return uint64(binary.Size(v))
}

// WriteValue stores v in little-endian order at addr. Like Write, the store
// is clipped at the end of the frame; the number of bytes written is
// returned.
func WriteValue[T Word](m *MMU, addr uint64, v T) (int, error) {
	buf, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		return 0, err
	}

	return m.Write(addr, buf)
}

// ReadValue loads a little-endian value from addr. The bytes may span
// frames.
func ReadValue[T Word](m *MMU, addr uint64) (T, error) {
	var v T

	buf := make([]byte, WidthOf[T]())
	for i := range buf {
		b, err := m.Read(addr + uint64(i))
		if err != nil {
			return v, err
		}

		buf[i] = b
	}

	_, err := binary.Decode(buf, binary.LittleEndian, &v)

	return v, err
}

// ReadValueChecked is ReadValue restricted to allocated addresses, failing
// with a BufferOverflow if the value passes the end of the allocation.
func ReadValueChecked[T Word](m *MMU, addr uint64) (T, bool, error) {
	var zero T

	if _, found := m.covering(addr); !found {
		return zero, false, nil
	}

	if err := m.CheckBounds(addr, WidthOf[T]()); err != nil {
		return zero, true, err
	}

	v, err := ReadValue[T](m, addr)

	return v, true, err
}

// WriteValueChecked is WriteValue restricted to allocated addresses, failing
// with a BufferOverflow if the value passes the end of the allocation.
func WriteValueChecked[T Word](m *MMU, addr uint64, v T) (int, bool, error) {
	if _, found := m.covering(addr); !found {
		return 0, false, nil
	}

	if err := m.CheckBounds(addr, WidthOf[T]()); err != nil {
		return 0, true, err
	}

	n, err := WriteValue(m, addr, v)

	return n, true, err
}
