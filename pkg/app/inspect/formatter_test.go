package inspect

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func sampleResponse() *Response {
	return &Response{
		Image: ImageInfo{Path: "disk.img", SizeBytes: 1048576},
		Volume: VolumeInfo{
			UUID:        "6f1c2c8e-3f0e-4d55-9d57-2a3c1b6e8f10",
			BlockSize:   512,
			TotalBlocks: 2048,
			InodeCount:  2048,
			InodeBitmap: Region{Start: 1, Blocks: 1},
			BlockBitmap: Region{Start: 2, Blocks: 1},
			InodeTable:  Region{Start: 3, Blocks: 128},
			DataStart:   131,
		},
		Usage: types.UsageT{DataBlocks: 1917, FreeBlocks: 1913, UsedBlocks: 4},
		Entries: []EntryResult{
			{Path: "/a", Inode: 1, Type: "DIRECTORY", LinkCount: 2, Size: 68, Blocks: 1},
			{Path: "/a/f", Inode: 2, Type: "FILE", LinkCount: 1, Size: 1536, Blocks: 3},
		},
		Check: &types.CheckReportT{InodesChecked: 3, BlocksChecked: 4},
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(), "table"))

	out := buf.String()
	assert.Contains(t, out, "disk.img (1.0 MB)")
	assert.Contains(t, out, "inode table 3-130")
	assert.Contains(t, out, "4 used, 1913 free, 1917 total")
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "1.5 KB")
	assert.Contains(t, out, "Check: clean (3 inodes, 4 blocks)")
}

func TestFormatTableProblems(t *testing.T) {
	resp := sampleResponse()
	resp.Entries = nil
	resp.Check.Problems = []string{"inode 7 link count 2, found 1 references"}

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, resp, "table"))

	out := buf.String()
	assert.NotContains(t, out, "PATH")
	assert.Contains(t, out, "Check: 1 problems")
	assert.True(t, strings.HasSuffix(out, "  inode 7 link count 2, found 1 references\n"))
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(), "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "volume")
	assert.Contains(t, decoded, "entries")
	assert.Contains(t, buf.String(), "\n  \"image\"")
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(), "yaml"))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	volume, ok := decoded["volume"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 131, volume["data_start"])
}

func TestFormatUnsupported(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, FormatOutput(&buf, sampleResponse(), "xml"))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatBytes(tt.size))
	}
}
