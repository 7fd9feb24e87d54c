package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

func validRows() []Bar {
	return []Bar{
		{TS: day(0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{TS: day(1), Open: 11, High: 13, Low: 10, Close: 12, Volume: 120},
		{TS: day(2), Open: 12, High: 12, Low: 11, Close: 11.5, Volume: 90},
	}
}

func TestNewBarSeries_Valid(t *testing.T) {
	s, err := NewBarSeries(" aapl ", Interval1d, validRows())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "AAPL", s.Ticker())
	assert.Equal(t, Interval1d, s.Interval())
	assert.Equal(t, 11.5, s.At(2).Close)
	assert.NotZero(t, s.ID())
	assert.Equal(t, []float64{11, 12, 11.5}, s.Closes())
}

func TestNewBarSeries_EmptyIsState(t *testing.T) {
	s, err := NewBarSeries("AAPL", Interval1d, nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())

	var nilSeries *BarSeries
	assert.True(t, nilSeries.Empty())
}

func TestNewBarSeries_RejectsPriceInvariants(t *testing.T) {
	cases := []struct {
		name string
		bar  Bar
	}{
		{"low above open", Bar{TS: day(5), Open: 10, High: 12, Low: 10.5, Close: 11}},
		{"high below close", Bar{TS: day(5), Open: 10, High: 10.5, Low: 9, Close: 11}},
		{"low above high", Bar{TS: day(5), Open: 10, High: 9, Low: 11, Close: 10}},
		{"negative volume", Bar{TS: day(5), Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := append(validRows(), tc.bar)
			_, err := NewBarSeries("AAPL", Interval1d, rows)
			var ide *InvalidDataError
			require.True(t, errors.As(err, &ide), "got %v", err)
			assert.Equal(t, 3, ide.Index)
		})
	}
}

func TestNewBarSeries_RejectsTimestampOrder(t *testing.T) {
	repeated := validRows()
	repeated[2].TS = repeated[1].TS
	_, err := NewBarSeries("AAPL", Interval1d, repeated)
	var ide *InvalidDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 2, ide.Index)

	decreasing := validRows()
	decreasing[1].TS = day(-1)
	_, err = NewBarSeries("AAPL", Interval1d, decreasing)
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 1, ide.Index)
}

func TestBarSeries_IdentityAndImmutability(t *testing.T) {
	rows := validRows()
	a, err := NewBarSeries("AAPL", Interval1d, rows)
	require.NoError(t, err)
	b, err := NewBarSeries("AAPL", Interval1d, rows)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID(), "each load is a new identity")

	rows[0].Close = 999
	assert.Equal(t, 11.0, a.At(0).Close, "series must copy its input")

	out := a.Bars()
	out[1].Close = 999
	assert.Equal(t, 12.0, a.At(1).Close)
}

func TestBarSeries_IndexSearch(t *testing.T) {
	s, err := NewBarSeries("AAPL", Interval1d, validRows())
	require.NoError(t, err)

	assert.Equal(t, -1, s.IndexAtOrBefore(day(-1)))
	assert.Equal(t, 1, s.IndexAtOrBefore(day(1)))
	assert.Equal(t, 1, s.IndexAtOrBefore(day(1).Add(time.Hour)))
	assert.Equal(t, 2, s.IndexAtOrBefore(day(30)))

	assert.Equal(t, 0, s.IndexAtOrAfter(day(-3)))
	assert.Equal(t, 2, s.IndexAtOrAfter(day(1).Add(time.Hour)))
	assert.Equal(t, 3, s.IndexAtOrAfter(day(30)))
}

func TestBar_Direction(t *testing.T) {
	assert.True(t, Bar{Open: 1, Close: 2}.Up())
	assert.False(t, Bar{Open: 2, Close: 1}.Up())
	assert.True(t, Bar{Open: 2, Close: 2}.Flat())
	assert.Equal(t, 2.0, Bar{Open: 1, Close: 2}.BodyTop())
	assert.Equal(t, 1.0, Bar{Open: 1, Close: 2}.BodyBottom())
}
