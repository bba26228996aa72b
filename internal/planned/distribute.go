package planned

import (
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
)

// Request is one consumer of a space distribution.
type Request struct {
	Min    disksize.Size
	Max    disksize.Size
	Weight int
}

// Distribute splits total among requests. Every request first gets its
// minimum rounded up to unit. The rest is handed out in rounds,
// proportionally to the weights (equally when all weights are zero), each
// share rounded down to unit and capped at the request maximum. A round
// that cannot hand out a whole unit gives one unit to the first request
// still growing, so the loop always ends.
//
// It fails with an error matching outcome.ErrNoDiskSpace when the rounded
// minima exceed total.
func Distribute(reqs []Request, total, unit disksize.Size) ([]disksize.Size, error) {
	if unit.IsZero() {
		unit = disksize.B
	}

	sizes := make([]disksize.Size, len(reqs))
	used := disksize.Zero
	for i, r := range reqs {
		sizes[i] = r.Min.CeilTo(unit)
		used = used.Add(sizes[i])
	}
	if total.Less(used) {
		return nil, fmt.Errorf("%w: minimum sizes need %s, only %s available", outcome.ErrNoDiskSpace, used, total)
	}

	remaining := total.MustSub(used)
	for !remaining.Less(unit) {
		var growing []int
		for i, r := range reqs {
			if sizes[i].Less(limit(r, unit)) {
				growing = append(growing, i)
			}
		}
		if len(growing) == 0 {
			break
		}
		weights, sum := weightsOf(reqs, growing)

		granted := disksize.Zero
		for _, i := range growing {
			share := remaining.MulDiv(weights[i], sum).FloorTo(unit)
			share = disksize.Min(share, limit(reqs[i], unit).MustSub(sizes[i]))
			sizes[i] = sizes[i].Add(share)
			granted = granted.Add(share)
		}
		if granted.IsZero() {
			i := growing[0]
			sizes[i] = sizes[i].Add(unit)
			granted = unit
		}
		remaining = remaining.MustSub(granted)
	}
	return sizes, nil
}

// limit is the largest size a request may grow to: its maximum rounded
// down to unit, but never below its rounded minimum.
func limit(r Request, unit disksize.Size) disksize.Size {
	return disksize.Max(r.Max.FloorTo(unit), r.Min.CeilTo(unit))
}

// weightsOf returns the weight of every growing request and their sum.
// When no growing request has a weight they all count as one.
func weightsOf(reqs []Request, growing []int) (map[int]uint64, uint64) {
	weights := make(map[int]uint64, len(growing))
	total := uint64(0)
	for _, i := range growing {
		weights[i] = uint64(reqs[i].Weight)
		total += weights[i]
	}
	if total == 0 {
		for _, i := range growing {
			weights[i] = 1
		}
		total = uint64(len(growing))
	}
	return weights, total
}

// DistributeSpace sets the Size of every logical volume from total, using
// the extent size of the volume group as rounding unit.
func DistributeSpace(lvs []*LogicalVolume, total, extent disksize.Size) error {
	reqs := make([]Request, len(lvs))
	for i, lv := range lvs {
		reqs[i] = Request{Min: lv.Min, Max: lv.Max, Weight: lv.Weight}
	}
	sizes, err := Distribute(reqs, total, extent)
	if err != nil {
		return err
	}
	for i, lv := range lvs {
		lv.Size = sizes[i]
	}
	return nil
}
