package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPhaseAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		startTime time.Time
		endTime   time.Time
		want      Phase
	}{
		{
			name:      "before_start",
			startTime: now.Add(1000 * time.Millisecond),
			endTime:   now.Add(2000 * time.Millisecond),
			want:      Upcoming,
		},
		{
			name:      "between_start_and_end",
			startTime: now.Add(-1000 * time.Millisecond),
			endTime:   now.Add(1000 * time.Millisecond),
			want:      Live,
		},
		{
			name:      "after_end",
			startTime: now.Add(-2 * time.Hour),
			endTime:   now.Add(-1 * time.Millisecond),
			want:      Ended,
		},
		{
			name:      "exactly_at_start",
			startTime: now,
			endTime:   now.Add(time.Hour),
			want:      Live,
		},
		{
			name:      "exactly_at_end",
			startTime: now.Add(-time.Hour),
			endTime:   now,
			want:      Live,
		},
		{
			name:      "one_nanosecond_after_end",
			startTime: now.Add(-time.Hour),
			endTime:   now.Add(-time.Nanosecond),
			want:      Ended,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, PhaseAt(tc.startTime, tc.endTime, now))
		})
	}
}
