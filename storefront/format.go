package storefront

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("amount must be a non-negative SOL value with at most 9 decimals")

	lamportsPerSol = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))
	maxLamports    = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)
)

func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSol)
}

func SolToLamports(sol decimal.Decimal) (uint64, error) {
	lamports := sol.Mul(lamportsPerSol)
	if lamports.IsNegative() || !lamports.Equal(lamports.Truncate(0)) || lamports.GreaterThan(maxLamports) {
		return 0, errors.Wrapf(ErrInvalidAmount, "got %s", sol.String())
	}
	return lamports.BigInt().Uint64(), nil
}

// ParseSol parses a decimal SOL string such as "1.25" into lamports.
func ParseSol(value string) (uint64, error) {
	sol, err := decimal.NewFromString(value)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q", value)
	}
	return SolToLamports(sol)
}

func FormatPrice(lamports uint64) string {
	return LamportsToSol(lamports).StringFixed(2) + " SOL"
}

// FeePercent converts basis points to a percentage, 250 -> 2.5.
func FeePercent(feeBps uint16) decimal.Decimal {
	return decimal.NewFromInt(int64(feeBps)).Div(decimal.NewFromInt(100))
}

// FormatAddress shortens an address to its first and last length characters.
func FormatAddress(address string, length int) string {
	if address == "" {
		return ""
	}
	if length < 0 {
		length = 0
	}
	if len(address) <= 2*length {
		return address
	}
	return address[:length] + "..." + address[len(address)-length:]
}
