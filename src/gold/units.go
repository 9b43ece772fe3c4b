package gold

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a quotable mass unit for gold.
type Unit string

const (
	UnitGram    Unit = "gram"
	UnitOunce   Unit = "ounce"
	UnitTenGram Unit = "ten_gram"
	UnitTola    Unit = "tola"
)

// Grams per unit. Troy ounce and tola are the standard bullion conversions.
const (
	GramsPerTroyOunce = 31.1034768
	GramsPerTola      = 11.6638038
	GramsPerTenGram   = 10.0
)

// ParseUnit normalizes the spellings accepted on the wire ("oz", "10g",
// "ten-gram", ...) into a canonical Unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gram", "g", "per gram":
		return UnitGram, nil
	case "ounce", "oz", "troy_ounce", "troy-ounce":
		return UnitOunce, nil
	case "ten_gram", "ten-gram", "10g", "10_gram":
		return UnitTenGram, nil
	case "tola":
		return UnitTola, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// GramsIn returns how many grams one of the given unit contains.
func GramsIn(u Unit) float64 {
	switch u {
	case UnitOunce:
		return GramsPerTroyOunce
	case UnitTenGram:
		return GramsPerTenGram
	case UnitTola:
		return GramsPerTola
	default:
		return 1
	}
}

// Label is the human-readable unit tag used in price payloads.
func (u Unit) Label() string {
	switch u {
	case UnitOunce:
		return "per ounce"
	case UnitTenGram:
		return "per 10 grams"
	case UnitTola:
		return "per tola"
	default:
		return "per gram"
	}
}

// PricePerUnit converts a per-gram price into a price for the given unit.
func PricePerUnit(pricePerGram float64, u Unit) float64 {
	return pricePerGram * GramsIn(u)
}

// RoundMoney rounds a monetary amount to 2 decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundMass rounds a gold mass to 3 decimal places (milligram resolution).
func RoundMass(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ApplyMarkup adds a retail markup percentage to a price.
func ApplyMarkup(price, markupPercent float64) float64 {
	if markupPercent == 0 {
		return price
	}
	return RoundMoney(price * (1 + markupPercent/100))
}
