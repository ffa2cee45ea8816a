package layout

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func TestDirEntryRoundTrip(t *testing.T) {
	endian := binary.LittleEndian
	data := make([]byte, 3*types.DirEntrySize)

	entries := []types.DirEntryT{
		{Name: ".", Inode: 0},
		{},
		{Name: strings.Repeat("x", types.NameMax), Inode: 2047},
	}
	for i, e := range entries {
		if err := EncodeDirEntry(data[i*types.DirEntrySize:], e, endian); err != nil {
			t.Fatalf("EncodeDirEntry(%d) failed: %v", i, err)
		}
	}

	got, err := ParseDirEntries(data, endian)
	if err != nil {
		t.Fatalf("ParseDirEntries() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ParseDirEntries() returned %d entries, want 3", len(got))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
	if !got[1].IsHole() {
		t.Error("entry 1 should be a hole")
	}
}

func TestParseDirEntries_BadLength(t *testing.T) {
	if _, err := ParseDirEntries(make([]byte, types.DirEntrySize+1), binary.LittleEndian); err == nil {
		t.Error("ParseDirEntries() should reject a partial entry")
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"f1", true},
		{strings.Repeat("a", types.NameMax), true},
		{strings.Repeat("a", types.NameMax+1), false},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", tt.name, err)
		}
		if !tt.valid && !errors.Is(err, types.ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", tt.name, err)
		}
	}
}
