package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/models"
)

func TestEntryCapEvictsOldestFirst(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	log := NewLog(3, time.Hour, clk)

	for i := 0; i < 5; i++ {
		log.Append(models.MemoryEntry{Time: clk.Now(), Input: fmt.Sprintf("msg %d", i)})
		clk.Advance(time.Second)
	}

	entries := log.Recall()
	require.Len(t, entries, 3)
	assert.Equal(t, "msg 2", entries[0].Input)
	assert.Equal(t, "msg 4", entries[2].Input)
}

func TestAgeBoundEvicts(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	log := NewLog(10, time.Minute, clk)

	log.Append(models.MemoryEntry{Time: clk.Now(), Input: "old"})
	clk.Advance(2 * time.Minute)
	log.Append(models.MemoryEntry{Time: clk.Now(), Input: "fresh"})

	entries := log.Recall()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Input)
}

func TestRecallReturnsCopy(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	log := NewLog(10, time.Hour, clk)
	log.Append(models.MemoryEntry{Time: clk.Now(), Input: "a"})

	entries := log.Recall()
	entries[0].Input = "mutated"

	assert.Equal(t, "a", log.Recall()[0].Input)
}
