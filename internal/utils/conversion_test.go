package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDec(t *testing.T) {
	d, err := ParseDec("0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.500000000000000000", d.String())

	d, err = ParseDec("1000")
	require.NoError(t, err)
	assert.Equal(t, "1000.000000000000000000", d.String())

	d, err = ParseDec("-2.25")
	require.NoError(t, err)
	assert.True(t, d.IsNegative())

	_, err = ParseDec("")
	require.ErrorIs(t, err, ErrEmptyValue)

	_, err = ParseDec("not-a-number")
	require.ErrorIs(t, err, ErrMalformedValue)

	_, err = ParseDec("1.2.3")
	require.ErrorIs(t, err, ErrMalformedValue)
}

func TestParsePositiveDec(t *testing.T) {
	d, err := ParsePositiveDec("0.000000000000000001")
	require.NoError(t, err)
	assert.True(t, d.IsPositive())

	_, err = ParsePositiveDec("0")
	require.ErrorIs(t, err, ErrValueNegative)

	_, err = ParsePositiveDec("-1.5")
	require.ErrorIs(t, err, ErrValueNegative)

	_, err = ParsePositiveDec("")
	require.ErrorIs(t, err, ErrEmptyValue)
}

func TestParseFeeUnits(t *testing.T) {
	v, err := ParseFeeUnits("1500")
	require.NoError(t, err)
	assert.Equal(t, "1500", v.String())

	v, err = ParseFeeUnits("0")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ParseFeeUnits("-5")
	require.ErrorIs(t, err, ErrValueNegative)

	_, err = ParseFeeUnits("")
	require.ErrorIs(t, err, ErrEmptyValue)

	_, err = ParseFeeUnits("1.5")
	require.ErrorIs(t, err, ErrMalformedValue)

	_, err = ParseFeeUnits("abc")
	require.ErrorIs(t, err, ErrMalformedValue)
}
