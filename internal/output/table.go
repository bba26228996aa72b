package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// TableFormatter formats documents as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatDevicegraph lists every device of a Devicegraph, one per row:
// disks followed by their partitions and encryption layers, then volume
// groups followed by their logical volumes.
func (f *TableFormatter) FormatDevicegraph(d *v1alpha1.Devicegraph) (string, error) {
	if len(d.Spec.Disks) == 0 && len(d.Spec.VolumeGroups) == 0 {
		return "No devices found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "DEVICE\tTYPE\tSIZE\tSTART\tID\tFS\tMOUNT")
	}

	pvSizes := make(map[string]disksize.Size)
	for _, disk := range d.Spec.Disks {
		kind := "disk"
		if disk.PartitionTable != "" {
			kind = "disk(" + disk.PartitionTable + ")"
		}
		row(w, disk.Name, kind, disk.Size.String(), "-", "-", "-", "-")

		for _, p := range disk.Partitions {
			name := "-"
			if p.Number > 0 {
				name = naming.PartitionName(disk.Name, p.Number)
				pvSizes[name] = p.Size
			}
			ptype := p.Type.String()
			if ptype == "" {
				ptype = "primary"
			}
			id := "-"
			if p.ID != 0 {
				id = p.ID.String()
			}
			fs, mount := orDash(p.Filesystem), orDash(p.MountPoint)
			if p.Encrypted {
				row(w, name, ptype, p.Size.String(), p.Start.String(), id, "-", "-")
				if name != "-" {
					name = naming.EncryptionName(name)
					pvSizes[name] = p.Size
				}
				row(w, "  "+name, "encryption", p.Size.String(), "-", "-", fs, mount)
				continue
			}
			row(w, name, ptype, p.Size.String(), p.Start.String(), id, fs, mount)
		}
	}

	for _, vg := range d.Spec.VolumeGroups {
		var sizes []disksize.Size
		for _, pv := range vg.PhysicalVolumes {
			sizes = append(sizes, pvSizes[pv])
		}
		row(w, "/dev/"+vg.Name, "vg", disksize.Sum(sizes, 0).String(), "-", "-", "-", "-")

		for _, lv := range vg.LogicalVolumes {
			row(w, naming.LogicalVolumePath(vg.Name, lv.Name), "lv", lv.Size.String(), "-", "-",
				orDash(lv.Filesystem), orDash(lv.MountPoint))
		}
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatProposal formats a single Proposal as a table row.
func (f *TableFormatter) FormatProposal(p *v1alpha1.Proposal) (string, error) {
	return f.FormatProposalList([]*v1alpha1.Proposal{p})
}

// FormatProposalList formats a list of Proposals as a table.
func (f *TableFormatter) FormatProposalList(ps []*v1alpha1.Proposal) (string, error) {
	if len(ps) == 0 {
		return "No proposals found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tPHASE\tVARIANT\tCREATED\tDELETED\tAGE")
	}

	for _, p := range ps {
		phase := string(p.Status.Phase)
		if phase == "" {
			phase = "-"
		}

		age := "-"
		if !p.CreationTimestamp.IsZero() {
			age = formatAge(time.Since(p.CreationTimestamp.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			p.Name, phase, orDash(p.Status.Description), len(p.Status.Created), len(p.Status.Deleted), age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

func row(w *tabwriter.Writer, cols ...string) {
	for i, c := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, c)
	}
	_, _ = fmt.Fprintln(w)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
