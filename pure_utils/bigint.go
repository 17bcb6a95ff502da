package pure_utils

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
)

// Monetary amounts travel as base-10 strings of minor/atomic units and are
// compared with arbitrary-precision integers. Never floats: token amounts
// routinely exceed int64 and cap checks must be exact at the boundary.

func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Newf("'%s' is not a base-10 integer amount", s)
	}
	return v, nil
}

// CmpAmounts compares two amount strings, returning -1, 0 or 1.
func CmpAmounts(a, b string) (int, error) {
	av, err := ParseAmount(a)
	if err != nil {
		return 0, err
	}
	bv, err := ParseAmount(b)
	if err != nil {
		return 0, err
	}
	return av.Cmp(bv), nil
}

// WithinTolerancePct reports whether observed is within pct percent of
// expected, computed in integer math: |expected-observed| * 100 <= expected * pct.
func WithinTolerancePct(expected, observed *big.Int, pct int64) bool {
	if expected.Sign() <= 0 {
		return expected.Cmp(observed) == 0
	}
	diff := new(big.Int).Sub(expected, observed)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(100))
	bound := new(big.Int).Mul(expected, big.NewInt(pct))
	return diff.Cmp(bound) <= 0
}

// Pow10 returns 10^exp as a big integer.
func Pow10(exp int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// DecimalToAtomic scales a decimal string ("12.5") to atomic units with the
// given number of decimals. Fails on more fractional digits than decimals:
// silently truncating a payment amount is never acceptable.
func DecimalToAtomic(value string, decimals int) (string, error) {
	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > decimals {
		return "", errors.Newf("'%s' has more than %d decimals", value, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return "", errors.Newf("'%s' is not a decimal amount", value)
	}
	return v.String(), nil
}
