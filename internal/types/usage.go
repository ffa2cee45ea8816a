package types

// UsageT summarizes how much of a volume is in use.
type UsageT struct {
	TotalBlocks   uint32 `json:"total_blocks" yaml:"total_blocks"`
	DataBlocks    uint32 `json:"data_blocks" yaml:"data_blocks"`
	FreeBlocks    uint32 `json:"free_blocks" yaml:"free_blocks"`
	UsedBlocks    uint32 `json:"used_blocks" yaml:"used_blocks"`
	TotalInodes   uint32 `json:"total_inodes" yaml:"total_inodes"`
	FreeInodes    uint32 `json:"free_inodes" yaml:"free_inodes"`
	UsedInodes    uint32 `json:"used_inodes" yaml:"used_inodes"`
	OpenHandles   int    `json:"open_handles" yaml:"open_handles"`
	MaxHandles    int    `json:"max_handles" yaml:"max_handles"`
	PendingInodes int    `json:"pending_inodes" yaml:"pending_inodes"`
}

// CheckReportT is the result of a consistency check.
type CheckReportT struct {
	// Inodes reached from the root, the root included.
	InodesChecked int `json:"inodes_checked" yaml:"inodes_checked"`

	// Data and indirect blocks claimed by those inodes.
	BlocksChecked int `json:"blocks_checked" yaml:"blocks_checked"`

	// Inconsistencies found, one line each.
	Problems []string `json:"problems" yaml:"problems"`
}

// OK reports whether the check found nothing wrong.
func (r *CheckReportT) OK() bool {
	return len(r.Problems) == 0
}
