package entity

import (
	"errors"
	"math"
	"time"
)

// ValidateRecord checks the Record invariants from the data model: id and
// source must be non-empty, title and url must not both be empty, url (if
// set) must pass ValidateURL, price (if set) must be non-negative with at
// most two fractional digits, and timestamp must not be in the future.
func ValidateRecord(r *Record) error {
	if r.ID == "" {
		return errors.New("record: id is required")
	}
	if r.Source == "" {
		return errors.New("record: source is required")
	}
	if r.Title == "" && r.URL == "" {
		return errors.New("record: title and url cannot both be empty")
	}
	if r.URL != "" {
		if err := ValidateURL(r.URL); err != nil {
			return err
		}
	}
	if r.Price != nil {
		if err := validatePrice(*r.Price); err != nil {
			return err
		}
	}
	if r.Timestamp.After(time.Now().Add(time.Minute)) {
		return errors.New("record: timestamp is in the future")
	}
	return nil
}

// validatePrice enforces non-negative values with at most two fractional
// digits (cents precision).
func validatePrice(price float64) error {
	if price < 0 {
		return &ValidationError{Field: "price", Message: "price must be non-negative"}
	}
	cents := math.Round(price * 100)
	if math.Abs(price*100-cents) > 1e-6 {
		return &ValidationError{Field: "price", Message: "price must have at most 2 fractional digits"}
	}
	return nil
}
