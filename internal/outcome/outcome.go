// Package outcome defines the result of an allocation attempt and the errors
// that make an attempt fail.
package outcome

import (
	"errors"
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// ErrNoDiskSpace is matched by every failure caused by planned devices not
// fitting in the available space.
var ErrNoDiskSpace = errors.New("no disk space")

// NoDiskSpaceError reports that a volume group could not provide enough
// space for its planned logical volumes, even after deleting every
// candidate volume.
type NoDiskSpaceError struct {
	// VG is the volume group name. Empty when the failure is not tied to a
	// volume group.
	VG string
	// Missing is the space still missing when the attempt gave up.
	Missing disksize.Size
}

func (e *NoDiskSpaceError) Error() string {
	if e.VG == "" {
		return fmt.Sprintf("no disk space: %s missing", e.Missing)
	}
	return fmt.Sprintf("no disk space in volume group %s: %s missing", e.VG, e.Missing)
}

// Is makes errors.Is(err, ErrNoDiskSpace) hold.
func (e *NoDiskSpaceError) Is(target error) bool {
	return target == ErrNoDiskSpace
}

// Outcome is the result of one allocation attempt. It is either a success
// holding the resulting graph, or a failure holding the error; never both.
type Outcome struct {
	// Graph is the working graph of a successful attempt.
	Graph devicegraph.Devicegraph
	// Deleted lists the partitions and logical volumes removed to make space.
	Deleted []string
	// Created lists the devices created by the attempt.
	Created []string
	// Description names the settings variant that produced this outcome.
	Description string
	// Err is set for failed attempts.
	Err error
}

// Success builds a successful outcome.
func Success(g devicegraph.Devicegraph, deleted, created []string) Outcome {
	return Outcome{Graph: g, Deleted: deleted, Created: created}
}

// Failure builds a failed outcome. The working graph is never exposed.
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// Succeeded reports whether the attempt produced a graph.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Graph != nil
}
