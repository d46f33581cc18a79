package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var feb2026 = time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	assert.Equal(t, "UR2024-26-0001", Format("UR2024", feb2026, 1))
	assert.Equal(t, "REG-26-0042", Format("REG", feb2026, 42))
	assert.Equal(t, "REG-26-10000", Format("REG", feb2026, 10000), "counter grows past the fixed width")
}

func TestCounter(t *testing.T) {
	n, ok := Counter("UR2024-26-0005", "UR2024", feb2026)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = Counter("UR2024-25-0005", "UR2024", feb2026)
	assert.False(t, ok, "other years are out of scope")

	_, ok = Counter("HJ2025-26-0005", "UR2024", feb2026)
	assert.False(t, ok, "other prefixes are out of scope")

	_, ok = Counter("UR2024-26-", "UR2024", feb2026)
	assert.False(t, ok)

	_, ok = Counter("UR2024-26-00x5", "UR2024", feb2026)
	assert.False(t, ok)
}

func TestNextFrom(t *testing.T) {
	t.Run("first number of the year is 0001", func(t *testing.T) {
		assert.Equal(t, 1, NextFrom(nil, "UR2024", feb2026))
	})

	t.Run("continues after the highest existing number", func(t *testing.T) {
		existing := []string{"UR2024-26-0005"}
		assert.Equal(t, 6, NextFrom(existing, "UR2024", feb2026))
	})

	t.Run("ignores other prefixes and years", func(t *testing.T) {
		existing := []string{
			"UR2024-25-0900",
			"HJ2025-26-0300",
			"UR2024-26-0002",
		}
		assert.Equal(t, 3, NextFrom(existing, "UR2024", feb2026))
	})

	t.Run("compares numerically past the fixed width", func(t *testing.T) {
		existing := []string{"REG-26-9999", "REG-26-10000"}
		assert.Equal(t, 10001, NextFrom(existing, "REG", feb2026))
	})
}
