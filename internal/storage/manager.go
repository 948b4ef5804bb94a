package storage

import (
	"fmt"
	"sort"
)

// Manager resolves disks by name ("public", "private", ...).
type Manager struct {
	disks map[string]Disk
}

func NewManager(disks ...Disk) *Manager {
	m := &Manager{disks: make(map[string]Disk, len(disks))}
	for _, d := range disks {
		m.disks[d.Name()] = d
	}
	return m
}

func (m *Manager) Disk(name string) (Disk, error) {
	d, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, name)
	}
	return d, nil
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.disks))
	for name := range m.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
