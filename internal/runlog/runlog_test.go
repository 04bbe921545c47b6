package runlog

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_RecentIsNewestFirst(t *testing.T) {
	h, err := NewHistory(8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.Add(Record{At: time.Now(), Trigger: "manual", Date: fmt.Sprintf("0%d/01/2024", i+1)})
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "03/01/2024", recent[0].Date)
	assert.Equal(t, "02/01/2024", recent[1].Date)
}

func TestRecord_DurationSerializesAsMilliseconds(t *testing.T) {
	rec := Record{DurationMS: (1500 * time.Millisecond).Milliseconds()}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.EqualValues(t, 1500, m["duration_ms"])
}

func TestHistory_EvictsOldest(t *testing.T) {
	h, err := NewHistory(2)
	require.NoError(t, err)

	h.Add(Record{Date: "01/01/2024"})
	h.Add(Record{Date: "02/01/2024"})
	h.Add(Record{Date: "03/01/2024"})

	assert.Equal(t, 2, h.Len())
	recent := h.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "03/01/2024", recent[0].Date)
}
