package domain

import (
	"encoding/json"
	"math/big"
	"math/bits"
	"strings"

	dErrors "desci/pkg/domain-errors"
)

// Amount is a signed 128-bit integer. All arithmetic is checked; results
// outside [-2^127, 2^127-1] fail with CodeOverflow instead of wrapping.
//
// The zero value is 0. Amount is comparable, so == works for equality.
type Amount struct {
	hi int64
	lo uint64
}

var (
	maxAmountBig = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minAmountBig = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	low64Mask    = new(big.Int).SetUint64(^uint64(0))

	// MaxAmount is the largest representable amount (2^127-1).
	MaxAmount = Amount{hi: 1<<63 - 1, lo: ^uint64(0)}
	// MinAmount is the smallest representable amount (-2^127).
	MinAmount = Amount{hi: -1 << 63, lo: 0}
)

// NewAmount converts an int64 into an Amount.
func NewAmount(v int64) Amount {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Amount{hi: hi, lo: uint64(v)}
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	switch {
	case a.hi < 0:
		return -1
	case a.hi == 0 && a.lo == 0:
		return 0
	default:
		return 1
	}
}

func (a Amount) IsZero() bool { return a.hi == 0 && a.lo == 0 }

// Cmp returns -1 if a < b, 0 if a == b and +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	default:
		return 0
	}
}

func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// Add returns a+b or a CodeOverflow error.
func (a Amount) Add(b Amount) (Amount, error) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(uint64(a.hi), uint64(b.hi), carry)
	sum := Amount{hi: int64(hi), lo: lo}
	if (a.hi < 0) == (b.hi < 0) && (sum.hi < 0) != (a.hi < 0) {
		return Amount{}, dErrors.New(dErrors.CodeOverflow, "amount overflows 128-bit range")
	}
	return sum, nil
}

// Sub returns a-b or a CodeOverflow error.
func (a Amount) Sub(b Amount) (Amount, error) {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, _ := bits.Sub64(uint64(a.hi), uint64(b.hi), borrow)
	diff := Amount{hi: int64(hi), lo: lo}
	if (a.hi < 0) != (b.hi < 0) && (diff.hi < 0) != (a.hi < 0) {
		return Amount{}, dErrors.New(dErrors.CodeOverflow, "amount overflows 128-bit range")
	}
	return diff, nil
}

// Mul returns a*b or a CodeOverflow error.
func (a Amount) Mul(b Amount) (Amount, error) {
	return AmountFromBig(new(big.Int).Mul(a.Big(), b.Big()))
}

// Big returns the amount as a new big.Int.
func (a Amount) Big() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(a.hi), 64)
	return v.Add(v, new(big.Int).SetUint64(a.lo))
}

// AmountFromBig converts v, failing with CodeOverflow when it does not fit.
func AmountFromBig(v *big.Int) (Amount, error) {
	if v.Cmp(maxAmountBig) > 0 || v.Cmp(minAmountBig) < 0 {
		return Amount{}, dErrors.New(dErrors.CodeOverflow, "amount overflows 128-bit range")
	}
	lo := new(big.Int).And(v, low64Mask).Uint64()
	hi := new(big.Int).Rsh(v, 64).Int64()
	return Amount{hi: hi, lo: lo}, nil
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be a base-10 integer")
	}
	return AmountFromBig(v)
}

// MustParseAmount is ParseAmount for constants and tests. It panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string {
	if a.hi == 0 {
		return new(big.Int).SetUint64(a.lo).String()
	}
	return a.Big().String()
}

// MarshalJSON encodes the amount as a decimal string so JavaScript clients
// do not lose precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount")
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
