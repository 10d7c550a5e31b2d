package device

import (
	"sync"

	. "github.com/weberc2/sfs/pkg/types"
)

// Memory is a device backed by a byte slice. It is used by tests and by the
// `memory` backend of the CLI.
type Memory struct {
	mutex sync.RWMutex
	data  []byte
}

var _ Device = (*Memory)(nil)

func NewMemory(sectors Sector) *Memory {
	return &Memory{data: make([]byte, Byte(sectors)*SectorSize)}
}

func (m *Memory) Sectors() Sector { return Sector(Byte(len(m.data)) / SectorSize) }

func (m *Memory) ReadSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(m, "reading", sector); err != nil {
		return err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	start := Byte(sector) * SectorSize
	copy(b[:], m.data[start:start+SectorSize])
	return nil
}

func (m *Memory) WriteSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(m, "writing", sector); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	start := Byte(sector) * SectorSize
	copy(m.data[start:start+SectorSize], b[:])
	return nil
}
