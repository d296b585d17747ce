// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique customer identifier.
type UserID int64

// IsValid checks if the user ID is valid (positive number).
func (u UserID) IsValid() bool {
	return u > 0
}

// Int64 returns the underlying int64 value.
func (u UserID) Int64() int64 {
	return int64(u)
}

// String returns the string representation.
func (u UserID) String() string {
	return fmt.Sprintf("%d", u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id int64) (UserID, error) {
	if id <= 0 {
		return 0, ErrInvalidUserID
	}
	return UserID(id), nil
}

// CatalogID represents a unique catalog entry identifier (achievement or badge).
type CatalogID int64

// IsValid checks if the catalog ID is valid.
func (c CatalogID) IsValid() bool {
	return c > 0
}

// Int64 returns the underlying int64 value.
func (c CatalogID) Int64() int64 {
	return int64(c)
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object (integer minor units)
// ═══════════════════════════════════════════════════════════════════════════

// Money represents a monetary amount in integer minor units (kobo for NGN).
// All arithmetic and comparisons happen on whole numbers, so repeated
// accumulation never drifts the way float64 naira amounts would.
type Money int64

const (
	// MinorUnitsPerMajor is the number of minor units in one major unit (100 kobo = ₦1).
	MinorUnitsPerMajor = 100
)

// FromMajor creates Money from a whole major-unit amount (e.g. naira).
func FromMajor(amount int64) Money {
	return Money(amount * MinorUnitsPerMajor)
}

// FromMajorFloat creates Money from a fractional major-unit amount, rounding
// to the nearest minor unit. Used at the ingestion boundary where amounts
// arrive as decimals.
func FromMajorFloat(amount float64) Money {
	if amount >= 0 {
		return Money(amount*MinorUnitsPerMajor + 0.5)
	}
	return Money(amount*MinorUnitsPerMajor - 0.5)
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 {
	return int64(m)
}

// Major returns the amount in major units, truncating minor remainder.
func (m Money) Major() int64 {
	return int64(m) / MinorUnitsPerMajor
}

// MajorFloat returns the amount in major units as a float64 (display only).
func (m Money) MajorFloat() float64 {
	return float64(m) / MinorUnitsPerMajor
}

// IsPositive checks if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// IsZero checks if the amount is zero.
func (m Money) IsZero() bool {
	return m == 0
}

// Add adds two amounts.
func (m Money) Add(other Money) Money {
	return m + other
}

// String returns a human-readable representation, e.g. "1500.00".
func (m Money) String() string {
	whole := int64(m) / MinorUnitsPerMajor
	frac := int64(m) % MinorUnitsPerMajor
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}

// NewMoney creates Money from minor units with validation.
func NewMoney(minorUnits int64) (Money, error) {
	if minorUnits < 0 {
		return 0, NewDomainError("shared", "NewMoney", ErrNegativeValue, "amount cannot be negative")
	}
	return Money(minorUnits), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Currency Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Currency represents a 3-letter ISO 4217 currency code.
type Currency string

// DefaultCurrency is the currency assumed when a purchase omits one.
const DefaultCurrency Currency = "NGN"

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// IsValid checks if the currency code is a 3-letter uppercase code.
func (c Currency) IsValid() bool {
	return currencyRegex.MatchString(string(c))
}

// String returns the string representation.
func (c Currency) String() string {
	return string(c)
}

// NewCurrency creates a new Currency with validation. Empty input falls back
// to the default currency.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	c := Currency(code)
	if !c.IsValid() {
		return "", NewDomainError("shared", "NewCurrency", ErrInvalidFormat, "currency must be a 3-letter code")
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents loyalty points earned from achievements.
type Points int

// IsValid checks if the points value is non-negative.
func (p Points) IsValid() bool {
	return p >= 0
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Add adds points.
func (p Points) Add(delta Points) Points {
	return p + delta
}

// Reaches checks if the points total meets a threshold.
func (p Points) Reaches(threshold Points) bool {
	return p >= threshold
}

// NewPoints creates a new Points value with validation.
func NewPoints(amount int) (Points, error) {
	if amount < 0 {
		return 0, NewDomainError("shared", "NewPoints", ErrNegativeValue, "points cannot be negative")
	}
	return Points(amount), nil
}
