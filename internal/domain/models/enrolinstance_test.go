package models

import (
	"testing"
	"time"
)

func TestEndDateAt(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"whole millisecond unchanged", time.UnixMilli(1_000_000), time.UnixMilli(1_000_000)},
		{"sub-millisecond rounds up", time.Unix(1000, 500_000), time.Unix(1000, int64(time.Millisecond))},
		{"just past a millisecond", time.Unix(1000, int64(time.Millisecond)+1), time.Unix(1000, 2*int64(time.Millisecond))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EndDateAt(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("EndDateAt(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestExpiredAt_StoredEndDate(t *testing.T) {
	end := time.Unix(1000, 500_000)
	stored := EndDateAt(end)
	inst := EnrolInstance{EndDate: &stored}

	if inst.ExpiredAt(end) {
		t.Error("now == requested end date should not be expired")
	}
	if !inst.ExpiredAt(end.Add(time.Millisecond)) {
		t.Error("a millisecond past the end date should be expired")
	}
	if (EnrolInstance{}).ExpiredAt(end) {
		t.Error("no end date never expires")
	}
}
