package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []Event {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestDebouncer_Coalesces(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   []Event
	}{
		{
			name:   "create then modify",
			events: []Event{{Path: "a.go", Op: OpCreate}, {Path: "a.go", Op: OpModify}},
			want:   []Event{{Path: "a.go", Op: OpCreate}},
		},
		{
			name:   "modify then delete",
			events: []Event{{Path: "a.go", Op: OpModify}, {Path: "a.go", Op: OpDelete}},
			want:   []Event{{Path: "a.go", Op: OpDelete}},
		},
		{
			name:   "delete then create",
			events: []Event{{Path: "a.go", Op: OpDelete}, {Path: "a.go", Op: OpCreate}},
			want:   []Event{{Path: "a.go", Op: OpModify}},
		},
		{
			name: "separate paths keep arrival order",
			events: []Event{
				{Path: "b.go", Op: OpModify},
				{Path: "a.go", Op: OpModify},
				{Path: "b.go", Op: OpModify},
			},
			want: []Event{{Path: "b.go", Op: OpModify}, {Path: "a.go", Op: OpModify}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(10 * time.Millisecond)
			defer d.Stop()
			for _, ev := range tt.events {
				d.Add(ev)
			}
			assert.Equal(t, tt.want, receive(t, d))
		})
	}
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	d.Add(Event{Path: "tmp.go", Op: OpCreate})
	d.Add(Event{Path: "tmp.go", Op: OpDelete})
	d.Add(Event{Path: "kept.go", Op: OpModify})

	assert.Equal(t, []Event{{Path: "kept.go", Op: OpModify}}, receive(t, d))
}

func TestDebouncer_WaitsForQuiet(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(Event{Path: "a.go", Op: OpModify})
		time.Sleep(10 * time.Millisecond)
	}
	batch := receive(t, d)
	require.Len(t, batch, 1)

	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch: %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(Event{Path: "a.go", Op: OpModify})
	d.Stop()
	d.Stop()
	d.Add(Event{Path: "b.go", Op: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
