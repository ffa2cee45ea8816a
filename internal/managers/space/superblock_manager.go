package space

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// SuperblockManager owns the in-memory superblock and writes it back to block 0
type SuperblockManager struct {
	dev interfaces.BlockDevice
	sb  *types.SuperblockT
}

// FormatSuperblock writes a fresh superblock for geometry g
func FormatSuperblock(dev interfaces.BlockDevice, g types.Geometry, id types.UUID) (*SuperblockManager, error) {
	m := &SuperblockManager{dev: dev, sb: types.NewSuperblock(g, id)}
	if err := m.Flush(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadSuperblock reads and validates the superblock in block 0
func LoadSuperblock(dev interfaces.BlockDevice) (*SuperblockManager, error) {
	data, err := dev.ReadBlock(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	reader, err := layout.NewSuperblockReader(data, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	sb := reader.Superblock()
	if uint64(sb.SbTotalBlocks) > dev.TotalBlocks() {
		return nil, fmt.Errorf("superblock describes %d blocks but the image holds %d", sb.SbTotalBlocks, dev.TotalBlocks())
	}
	return &SuperblockManager{dev: dev, sb: sb}, nil
}

// Superblock returns the in-memory superblock
func (m *SuperblockManager) Superblock() *types.SuperblockT {
	return m.sb
}

// Geometry returns the geometry recorded in the superblock
func (m *SuperblockManager) Geometry() types.Geometry {
	return m.sb.Geometry()
}

// Layout returns the block regions recorded in the superblock
func (m *SuperblockManager) Layout() types.Layout {
	return m.sb.Layout()
}

// SetFreeCounts updates the free counters and writes the superblock
func (m *SuperblockManager) SetFreeCounts(freeBlocks, freeInodes uint32) error {
	if m.sb.SbFreeBlocks == freeBlocks && m.sb.SbFreeInodes == freeInodes {
		return nil
	}
	m.sb.SbFreeBlocks = freeBlocks
	m.sb.SbFreeInodes = freeInodes
	return m.Flush()
}

// Flush writes the superblock to block 0
func (m *SuperblockManager) Flush() error {
	if err := m.dev.WriteBlock(0, layout.EncodeSuperblock(m.sb, binary.LittleEndian)); err != nil {
		return fmt.Errorf("failed to write superblock: %w", err)
	}
	return nil
}
