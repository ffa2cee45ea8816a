package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes the report to w in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats the report as aligned tables
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	v := response.Volume
	if response.Image.Path != "" {
		fmt.Fprintf(w, "Image:\t%s (%s)\n", response.Image.Path, formatBytes(response.Image.SizeBytes))
	}
	fmt.Fprintf(w, "UUID:\t%s\n", v.UUID)
	fmt.Fprintf(w, "Version:\t%d\n", v.Version)
	fmt.Fprintf(w, "Block size:\t%d\n", v.BlockSize)
	fmt.Fprintf(w, "Blocks:\t%d\n", v.TotalBlocks)
	fmt.Fprintf(w, "Inodes:\t%d (%d bytes each)\n", v.InodeCount, v.InodeSize)
	fmt.Fprintf(w, "Pointers:\t%d direct, %d-byte indirect slots\n", v.DirectPointers, v.PointerWidth)
	fmt.Fprintf(w, "Max file size:\t%d\n", v.MaxFileSize)
	fmt.Fprintf(w, "Layout:\tinode bitmap %s, block bitmap %s, inode table %s, data from %d\n",
		v.InodeBitmap, v.BlockBitmap, v.InodeTable, v.DataStart)

	u := response.Usage
	fmt.Fprintf(w, "Data blocks:\t%d used, %d free, %d total\n", u.UsedBlocks, u.FreeBlocks, u.DataBlocks)
	fmt.Fprintf(w, "Inodes used:\t%d used, %d free\n", u.UsedInodes, u.FreeInodes)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(response.Entries) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "PATH\tINODE\tTYPE\tLINKS\tSIZE\tBLOCKS\n")
		fmt.Fprintf(w, "----\t-----\t----\t-----\t----\t------\n")
		for _, e := range response.Entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%d\n", e.Path, e.Inode, e.Type, e.LinkCount, e.FormatSize(), e.Blocks)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if response.Check != nil {
		fmt.Fprintln(out)
		if response.Check.OK() {
			fmt.Fprintf(out, "Check: clean (%d inodes, %d blocks)\n", response.Check.InodesChecked, response.Check.BlocksChecked)
		} else {
			fmt.Fprintf(out, "Check: %d problems\n", len(response.Check.Problems))
			for _, p := range response.Check.Problems {
				fmt.Fprintf(out, "  %s\n", p)
			}
		}
	}
	return nil
}

// formatJSON formats the report as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats the report as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// formatBytes formats byte count as human readable
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
