// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResetPeriod controls how often a numbering scope starts over at 1.
type ResetPeriod string

const (
	ResetYearly ResetPeriod = "year"
	ResetNever  ResetPeriod = "never"
)

// Config holds numbering configuration.
type Config struct {
	// Scope names the counter family ("invoice"); combined with the period it
	// forms the counter key, e.g. "invoice-2025".
	Scope string

	// Prefix added to all numbers (e.g., "FAC")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum width of the numeric part (default 6)
	PadWidth int

	ResetPeriod ResetPeriod
}

// InvoiceConfig returns the folio numbering used for invoices: FAC-2025-000001.
func InvoiceConfig() Config {
	return Config{
		Scope:       "invoice",
		Prefix:      "FAC",
		IncludeYear: true,
		PadWidth:    6,
		ResetPeriod: ResetYearly,
	}
}

// Key returns the counter row name for the given period.
func (c Config) Key(period time.Time) string {
	if c.ResetPeriod == ResetNever {
		return c.Scope
	}
	return fmt.Sprintf("%s-%04d", c.Scope, period.Year())
}

// Format renders the counter value as a document number.
func (c Config) Format(period time.Time, value int64) string {
	padWidth := c.PadWidth
	if padWidth <= 0 {
		padWidth = 6
	}

	if c.IncludeYear {
		return fmt.Sprintf("%s-%04d-%0*d", c.Prefix, period.Year(), padWidth, value)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, padWidth, value)
}

// Validate checks that the configuration can produce numbers.
func (c Config) Validate() error {
	if c.Scope == "" {
		return fmt.Errorf("numerator scope is required")
	}
	if c.Prefix == "" {
		return fmt.Errorf("numerator prefix is required")
	}
	if c.PadWidth < 0 || c.PadWidth > 18 {
		return fmt.Errorf("numerator pad width out of range: %d", c.PadWidth)
	}
	return nil
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	idx := strings.LastIndexByte(formatted, '-')
	if idx < 0 || idx == len(formatted)-1 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
