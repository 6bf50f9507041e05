/*
This file contains common utility functions for converting between wire-level
strings and SDK math types, with strict validation so malformed input never
reaches the controller.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrEmptyValue     = errors.New("value is empty")
	ErrValueNegative  = errors.New("value is negative")
	ErrMalformedValue = errors.New("value is malformed")
)

// ParseDec converts a decimal string (e.g. "0.5", "1000") into an 18-decimal
// fixed-point value.
func ParseDec(value string) (sdkmath.LegacyDec, error) {
	if value == "" {
		return sdkmath.LegacyDec{}, ErrEmptyValue
	}
	dec, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %q: %w", ErrMalformedValue, value, err)
	}
	return dec, nil
}

// ParsePositiveDec is ParseDec restricted to strictly positive values.
func ParsePositiveDec(value string) (sdkmath.LegacyDec, error) {
	dec, err := ParseDec(value)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !dec.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %q", ErrValueNegative, value)
	}
	return dec, nil
}

// ParseFeeUnits converts an integer string into fee units.
func ParseFeeUnits(value string) (sdkmath.Int, error) {
	if value == "" {
		return sdkmath.Int{}, ErrEmptyValue
	}
	amount, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrMalformedValue, value)
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrValueNegative, value)
	}
	return amount, nil
}
