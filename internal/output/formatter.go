// Package output renders Devicegraph and Proposal documents for the
// command line: aligned tables for people, YAML and JSON for scripts.
package output

import (
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable prints aligned columns.
	FormatTable Format = "table"
	// FormatYAML prints the document as it is saved to disk.
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formatter formats storage documents for output.
type Formatter interface {
	// FormatDevicegraph formats the devices of a Devicegraph.
	FormatDevicegraph(d *v1alpha1.Devicegraph) (string, error)

	// FormatProposal formats a single Proposal with its status.
	FormatProposal(p *v1alpha1.Proposal) (string, error)

	// FormatProposalList formats a list of Proposals.
	FormatProposalList(ps []*v1alpha1.Proposal) (string, error)
}

// Options selects how documents are printed.
type Options struct {
	Format Format
	// NoHeaders drops the header row of tables.
	NoHeaders bool
}

// NewFormatter returns the Formatter for opts.Format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat reports an error for anything but table, yaml and json.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
