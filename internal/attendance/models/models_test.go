package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBounds(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	day := time.Date(2026, 3, 14, 0, 30, 0, 0, ist)

	start, end := DayBounds(day)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, ist), start)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, ist), end)
	assert.Equal(t, "2026-03-14", DayKey(day))
	assert.Equal(t, "2026-03-13", DayKey(day.UTC()))
}
