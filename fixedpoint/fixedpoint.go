// Package fixedpoint implements the 128-bit bounded fixed-point arithmetic used
// by the lockup engine. Ratios carry 18 decimal places and every operation
// truncates toward zero, matching integer ledger semantics. Values never
// saturate: any result outside [0, 2^128-1] surfaces as an explicit error.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ScaleDecimals is the number of fractional decimal digits carried by a Ratio.
const ScaleDecimals = 18

var (
	ErrOverflow       = errors.New("fixedpoint: overflow")
	ErrUnderflow      = errors.New("fixedpoint: underflow")
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	ErrNegative       = errors.New("fixedpoint: negative value")
)

// Scale is the fixed-point denominator, 10^18.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(ScaleDecimals), nil)

// MaxUint128 is the inclusive upper bound for all balances and inner values.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Ratio is an unsigned fixed-point number with 18 decimals whose inner
// representation is bounded to 128 bits.
type Ratio struct {
	inner *big.Int
}

// Zero returns the zero ratio.
func Zero() Ratio { return Ratio{inner: big.NewInt(0)} }

// One returns the ratio 1.0.
func One() Ratio { return Ratio{inner: new(big.Int).Set(Scale)} }

// FromInner builds a ratio from its raw 10^18-scaled representation.
func FromInner(inner *big.Int) (Ratio, error) {
	if inner == nil {
		return Zero(), nil
	}
	if inner.Sign() < 0 {
		return Ratio{}, ErrNegative
	}
	if inner.Cmp(MaxUint128) > 0 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{inner: new(big.Int).Set(inner)}, nil
}

// MustFromInner is FromInner for statically known constants.
func MustFromInner(inner *big.Int) Ratio {
	r, err := FromInner(inner)
	if err != nil {
		panic(err)
	}
	return r
}

// FromRational returns num/den truncated to 18 decimals.
func FromRational(num, den *big.Int) (Ratio, error) {
	if num == nil || num.Sign() == 0 {
		return Zero(), nil
	}
	if den == nil || den.Sign() == 0 {
		return Ratio{}, ErrDivisionByZero
	}
	if num.Sign() < 0 || den.Sign() < 0 {
		return Ratio{}, ErrNegative
	}
	n, overflow := uint256.FromBig(num)
	if overflow {
		return Ratio{}, ErrOverflow
	}
	d, overflow := uint256.FromBig(den)
	if overflow {
		return Ratio{}, ErrOverflow
	}
	scale, _ := uint256.FromBig(Scale)
	quo, mulOverflow := new(uint256.Int).MulDivOverflow(n, scale, d)
	if mulOverflow {
		return Ratio{}, ErrOverflow
	}
	inner := quo.ToBig()
	if inner.Cmp(MaxUint128) > 0 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{inner: inner}, nil
}

// Inner returns a copy of the raw scaled representation.
func (r Ratio) Inner() *big.Int {
	if r.inner == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(r.inner)
}

// IsZero reports whether the ratio is exactly zero.
func (r Ratio) IsZero() bool { return r.inner == nil || r.inner.Sign() == 0 }

// Cmp compares two ratios, returning -1, 0 or 1.
func (r Ratio) Cmp(other Ratio) int {
	a := r.inner
	if a == nil {
		a = big.NewInt(0)
	}
	b := other.inner
	if b == nil {
		b = big.NewInt(0)
	}
	return a.Cmp(b)
}

// Add returns r+other, failing when the sum exceeds the 128-bit bound.
func (r Ratio) Add(other Ratio) (Ratio, error) {
	sum := new(big.Int).Add(r.Inner(), other.Inner())
	if sum.Cmp(MaxUint128) > 0 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{inner: sum}, nil
}

// SaturatingSub returns r-other, clamped at zero.
func (r Ratio) SaturatingSub(other Ratio) Ratio {
	diff := new(big.Int).Sub(r.Inner(), other.Inner())
	if diff.Sign() < 0 {
		return Zero()
	}
	return Ratio{inner: diff}
}

// Min returns the smaller of the two ratios.
func (r Ratio) Min(other Ratio) Ratio {
	if r.Cmp(other) <= 0 {
		return Ratio{inner: r.Inner()}
	}
	return Ratio{inner: other.Inner()}
}

// Mul returns r*other truncated to 18 decimals.
func (r Ratio) Mul(other Ratio) (Ratio, error) {
	a, _ := uint256.FromBig(r.Inner())
	b, _ := uint256.FromBig(other.Inner())
	scale, _ := uint256.FromBig(Scale)
	quo, overflow := new(uint256.Int).MulDivOverflow(a, b, scale)
	if overflow {
		return Ratio{}, ErrOverflow
	}
	inner := quo.ToBig()
	if inner.Cmp(MaxUint128) > 0 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{inner: inner}, nil
}

// MulInt returns floor(v*r), failing when the product exceeds 128 bits.
func (r Ratio) MulInt(v *big.Int) (*big.Int, error) {
	if v == nil || v.Sign() == 0 || r.IsZero() {
		return big.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	a, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	b, _ := uint256.FromBig(r.Inner())
	scale, _ := uint256.FromBig(Scale)
	quo, mulOverflow := new(uint256.Int).MulDivOverflow(a, b, scale)
	if mulOverflow {
		return nil, ErrOverflow
	}
	out := quo.ToBig()
	if out.Cmp(MaxUint128) > 0 {
		return nil, ErrOverflow
	}
	return out, nil
}

// String renders the ratio as a decimal with trailing zeros trimmed.
func (r Ratio) String() string {
	inner := r.Inner()
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(inner, Scale, frac)
	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := strings.TrimRight(fmt.Sprintf("%018s", frac.String()), "0")
	return whole.String() + "." + digits
}

// ParseDecimal parses a non-negative decimal string such as "0.1" or "2" into
// a ratio, rejecting more than 18 fractional digits.
func ParseDecimal(s string) (Ratio, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ratio{}, fmt.Errorf("fixedpoint: empty decimal")
	}
	wholePart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		wholePart = s[:idx]
		fracPart = s[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > ScaleDecimals {
		return Ratio{}, fmt.Errorf("fixedpoint: %q has more than %d fractional digits", s, ScaleDecimals)
	}
	whole, ok := new(big.Int).SetString(wholePart, 10)
	if !ok || whole.Sign() < 0 {
		return Ratio{}, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}
	inner := new(big.Int).Mul(whole, Scale)
	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok || frac.Sign() < 0 {
			return Ratio{}, fmt.Errorf("fixedpoint: invalid decimal %q", s)
		}
		for i := len(fracPart); i < ScaleDecimals; i++ {
			frac.Mul(frac, big.NewInt(10))
		}
		inner.Add(inner, frac)
	}
	return FromInner(inner)
}

// CheckedAdd returns a+b for unsigned 128-bit balances.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(orZero(a), orZero(b))
	if sum.Cmp(MaxUint128) > 0 {
		return nil, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, failing when the result would be negative.
func CheckedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(orZero(a), orZero(b))
	if diff.Sign() < 0 {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// SaturatingSub returns a-b clamped at zero.
func SaturatingSub(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(orZero(a), orZero(b))
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
