package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTierTableDefaults(t *testing.T) {
	table, err := parseTierTable("")
	require.NoError(t, err)

	assert.Equal(t, "reduced", table.Lowest().Name)

	high, ok := table.Lookup("high")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, high.MaxAge)

	rt, ok := table.Lookup("realtime")
	require.True(t, ok)
	assert.Greater(t, rt.Rank, high.Rank)
}

func TestParseTierTableOverride(t *testing.T) {
	table, err := parseTierTable("kilometer:120, high:5")
	require.NoError(t, err)

	km, _ := table.Lookup("kilometer")
	assert.Equal(t, 120*time.Second, km.MaxAge)
	high, _ := table.Lookup("high")
	assert.Equal(t, 5*time.Second, high.MaxAge)

	// Untouched tiers keep defaults.
	std, _ := table.Lookup("standard")
	assert.Equal(t, 30*time.Second, std.MaxAge)
}

func TestParseTierTableRejectsUnknownTier(t *testing.T) {
	_, err := parseTierTable("warpSpeed:10")
	assert.Error(t, err)

	_, err = parseTierTable("kilometer")
	assert.Error(t, err)

	_, err = parseTierTable("kilometer:-5")
	assert.Error(t, err)
}

func TestHighest(t *testing.T) {
	table := DefaultTierTable()

	tier, ok := table.Highest([]string{"kilometer", "high", "reduced"})
	require.True(t, ok)
	assert.Equal(t, "high", tier.Name)

	tier, ok = table.Highest([]string{"kilometer", "reduced"})
	require.True(t, ok)
	assert.Equal(t, "kilometer", tier.Name)

	_, ok = table.Highest(nil)
	assert.False(t, ok)
}

func TestAtLeast(t *testing.T) {
	table := DefaultTierTable()
	assert.True(t, table.AtLeast("realtime", "high"))
	assert.True(t, table.AtLeast("high", "high"))
	assert.False(t, table.AtLeast("kilometer", "high"))
	assert.False(t, table.AtLeast("made-up", "high"))
}
