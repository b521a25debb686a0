package common

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleName(t *testing.T) {
	assert.Equal(t, "Mary Ann Smith", TitleName("  mARY   ann smith "))
	assert.Equal(t, "", TitleName("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Radiografía", Truncate("Radiografía de tórax", 11))
	assert.Equal(t, "tórax", Truncate("tórax", 5))
	assert.Equal(t, "", Truncate("ñ", 0))
	cut := Truncate(strings.Repeat("ñ", 40), 28)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 28, utf8.RuneCountInString(cut))
}

func TestUUIDint64Unique(t *testing.T) {
	seen := make(map[int64]struct{})
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "s3cret"))
	assert.False(t, CheckPassword(h, "other"))
	assert.False(t, CheckPassword("", "s3cret"))
}

func TestDates(t *testing.T) {
	d, err := NormalizeDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", d)

	d, err = AddDays("2024-02-28", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d)

	d, err = NormalizeDate("03/15/2024")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", d)

	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)
	assert.Equal(t, "17:05", FormatClock(17*60+5))
	_, err = ParseClock("9h")
	assert.Error(t, err)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "2.35", Round2(decimal.RequireFromString("2.345")).StringFixed(2))
	assert.Equal(t, "-2.35", Round2(decimal.RequireFromString("-2.345")).StringFixed(2))
	v, err := ParseMoney("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}
