// Package currency converts source-native money values into the single
// canonical integer subunit used everywhere else: copper, with 1 gold =
// 10000 copper. No floating currency value is ever persisted; floats exist
// only as display scalars at the outer boundary.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gw2trader/tradepost/internal/domain"
)

// CopperPerGold is the canonical scale factor between the display currency
// and its smallest subunit.
const CopperPerGold = 10000

// Unit identifies which denomination a source reports in.
type Unit string

const (
	// UnitCopper is the smallest denomination. The official API and the
	// bulk provider's price fields already report copper, so conversion is
	// the identity.
	UnitCopper Unit = "copper"
	// UnitGold is the fractional display currency; one gold becomes 10000
	// copper. Both providers report copper natively, so gold shows up only
	// in display-facing conversions.
	UnitGold Unit = "gold"
)

var goldScale = decimal.NewFromInt(CopperPerGold)

// ToCopper converts a source-native value into canonical copper subunits.
// Fractional remainders below one copper are truncated. Fails with
// domain.ErrInvalidUnit for an unrecognized unit; there are no other
// failure modes.
func ToCopper(value decimal.Decimal, unit Unit) (int64, error) {
	switch unit {
	case UnitCopper:
		return value.IntPart(), nil
	case UnitGold:
		return value.Mul(goldScale).IntPart(), nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
}

// Gold returns the display-currency scalar for a copper amount. Display
// only: never feed the result back into storage or comparisons.
func Gold(copper int64) float64 {
	return float64(copper) / CopperPerGold
}

// FormatGold renders a copper amount in the game's denominations, with
// 100 copper to a silver and 100 silver to a gold.
func FormatGold(copper int64) string {
	sign := ""
	if copper < 0 {
		sign = "-"
		copper = -copper
	}

	gold := copper / CopperPerGold
	silver := (copper % CopperPerGold) / 100
	rest := copper % 100

	switch {
	case gold > 0:
		return fmt.Sprintf("%s%dg %ds %dc", sign, gold, silver, rest)
	case silver > 0:
		return fmt.Sprintf("%s%ds %dc", sign, silver, rest)
	default:
		return fmt.Sprintf("%s%dc", sign, rest)
	}
}
