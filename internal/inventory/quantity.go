package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Quantity parse failures. Wrapped, so test with errors.Is.
var (
	ErrEmptyQuantity      = errors.New("quantity is empty")
	ErrNotANumber         = errors.New("quantity is not a number")
	ErrNegativeQuantity   = errors.New("quantity is negative")
	ErrFractionalQuantity = errors.New("quantity must be a whole number")
)

// ParseQuantity parses a stock count typed by a user.
func ParseQuantity(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrEmptyQuantity
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%q: out of range: %w", input, ErrNotANumber)
		}
		if strings.Contains(s, ".") {
			if _, ferr := strconv.ParseFloat(s, 64); ferr == nil {
				return 0, fmt.Errorf("%q: %w", input, ErrFractionalQuantity)
			}
		}
		return 0, fmt.Errorf("%q: %w", input, ErrNotANumber)
	}
	if n < 0 {
		return 0, fmt.Errorf("%q: %w", input, ErrNegativeQuantity)
	}
	return n, nil
}
