// Package format renders counts and sizes for command output.
package format

import (
	"fmt"
)

const (
	Thousand = 1000
	Million  = Thousand * 1000
	Billion  = Million * 1000
	Trillion = Billion * 1000
)

// HumanNumber abbreviates large counts such as index transitions, e.g.
// 1250000 becomes "1.25M".
func HumanNumber(b uint64) string {
	switch {
	case b >= Trillion:
		return decimalPlace(float64(b)/Trillion) + "T"
	case b >= Billion:
		return decimalPlace(float64(b)/Billion) + "B"
	case b >= Million:
		return decimalPlace(float64(b)/Million) + "M"
	case b >= Thousand:
		return decimalPlace(float64(b)/Thousand) + "K"
	default:
		return fmt.Sprintf("%d", b)
	}
}

func decimalPlace(number float64) string {
	switch {
	case number >= 100:
		return fmt.Sprintf("%.0f", number)
	case number >= 10:
		return fmt.Sprintf("%.1f", number)
	default:
		return fmt.Sprintf("%.2f", number)
	}
}
