// Package disksize provides an exact, overflow-safe representation of
// storage capacities.
//
// A Size is a count of bytes. Two sentinels are distinguished: Zero and
// Unlimited. Unlimited compares greater than every finite size and absorbs
// additions, which makes it usable as "no maximum" in planned devices.
//
// Subtraction never clamps: taking more than is available returns
// ErrUnderflow, since a negative capacity is always a programming error in
// the caller.
package disksize

import (
	"errors"
	"math"
	"math/bits"
)

// Size is a non-negative storage capacity in bytes.
type Size uint64

// Units.
const (
	B   Size = 1
	KiB Size = 1 << 10
	MiB Size = 1 << 20
	GiB Size = 1 << 30
	TiB Size = 1 << 40
	PiB Size = 1 << 50
)

const (
	// Zero is the empty size.
	Zero Size = 0

	// Unlimited is larger than any finite size.
	Unlimited Size = math.MaxUint64
)

var (
	// ErrUnderflow is returned when a subtraction would produce a negative size.
	ErrUnderflow = errors.New("disksize: subtraction underflow")

	// ErrUnlimited is returned when an operation has no defined result on
	// unlimited operands (e.g. unlimited minus unlimited).
	ErrUnlimited = errors.New("disksize: undefined operation on unlimited size")
)

// IsUnlimited reports whether s is the Unlimited sentinel.
func (s Size) IsUnlimited() bool {
	return s == Unlimited
}

// IsZero reports whether s is zero.
func (s Size) IsZero() bool {
	return s == Zero
}

// Bytes returns the size as a byte count.
func (s Size) Bytes() uint64 {
	return uint64(s)
}

// Add returns s + o. The result saturates to Unlimited on overflow or when
// either operand is Unlimited.
func (s Size) Add(o Size) Size {
	if s.IsUnlimited() || o.IsUnlimited() {
		return Unlimited
	}
	sum, carry := bits.Add64(uint64(s), uint64(o), 0)
	if carry != 0 || Size(sum) == Unlimited {
		return Unlimited
	}
	return Size(sum)
}

// Sub returns s - o, or ErrUnderflow if o > s.
//
// Unlimited minus a finite size is Unlimited. Unlimited minus Unlimited has
// no defined value and returns ErrUnlimited.
func (s Size) Sub(o Size) (Size, error) {
	if s.IsUnlimited() {
		if o.IsUnlimited() {
			return Zero, ErrUnlimited
		}
		return Unlimited, nil
	}
	if o > s {
		return Zero, ErrUnderflow
	}
	return s - o, nil
}

// MustSub is like Sub but panics on failure. It is meant for call sites where
// the operands have already been compared.
func (s Size) MustSub(o Size) Size {
	r, err := s.Sub(o)
	if err != nil {
		panic(err)
	}
	return r
}

// SubFloor returns s - o, or Zero when o >= s.
//
// Unlike Sub this is an explicit choice of the caller, used for values that
// are defined as floored (e.g. the unused space of a region).
func (s Size) SubFloor(o Size) Size {
	if s.IsUnlimited() && !o.IsUnlimited() {
		return Unlimited
	}
	if o >= s {
		return Zero
	}
	return s - o
}

// Cmp compares s and o and returns -1, 0 or +1.
func (s Size) Cmp(o Size) int {
	switch {
	case s < o:
		return -1
	case s > o:
		return 1
	default:
		return 0
	}
}

// Less reports whether s < o.
func (s Size) Less(o Size) bool {
	return s < o
}

// CeilTo rounds s up to the next multiple of grain. A zero grain or an
// Unlimited size leaves s unchanged. Rounding a value so large that the
// next multiple does not fit saturates to Unlimited.
func (s Size) CeilTo(grain Size) Size {
	if grain <= 1 || s.IsUnlimited() {
		return s
	}
	rem := s % grain
	if rem == 0 {
		return s
	}
	return s.Add(grain - rem)
}

// FloorTo rounds s down to a multiple of grain.
func (s Size) FloorTo(grain Size) Size {
	if grain <= 1 || s.IsUnlimited() {
		return s
	}
	return s - s%grain
}

// MulDiv returns s * num / den without intermediate overflow. The result
// saturates to Unlimited if it does not fit. den must be non-zero.
func (s Size) MulDiv(num, den uint64) Size {
	if den == 0 {
		panic("disksize: MulDiv by zero")
	}
	if s.IsUnlimited() {
		return Unlimited
	}
	hi, lo := bits.Mul64(uint64(s), num)
	if hi >= den {
		return Unlimited
	}
	q, _ := bits.Div64(hi, lo, den)
	return Size(q)
}

// Min returns the smaller of a and b.
func Min(a, b Size) Size {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Size) Size {
	if a > b {
		return a
	}
	return b
}

// Sum adds all sizes. When grain is non-zero every element is rounded up to
// grain before being added, which gives a pessimistic lower bound of the
// space the sizes will take once aligned.
func Sum(sizes []Size, grain Size) Size {
	total := Zero
	for _, s := range sizes {
		total = total.Add(s.CeilTo(grain))
	}
	return total
}
