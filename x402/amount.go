package x402

import (
	"math/big"
	"strings"
)

// FormatAmount renders an atomic-unit value as a decimal string with the
// given number of decimal places, e.g. 1500000 with 6 decimals becomes
// "1.500000". All arithmetic is integer; values above 2^53 keep their
// exact digits.
func FormatAmount(value *big.Int, decimals int) string {
	if value == nil {
		value = new(big.Int)
	}
	if decimals <= 0 {
		return value.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))

	fracStr := frac.String()
	if pad := decimals - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return whole.String() + "." + fracStr
}

// FormatUSD renders an atomic-unit USDC value as a dollar string,
// e.g. 1000 becomes "$0.001000".
func FormatUSD(value *big.Int) string {
	return "$" + FormatAmount(value, USDCDecimals)
}
