package orchestration

import (
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain/query"
)

func TestBatchSizeFor(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 10}, {1, 10}, {20, 10},
		{21, 8}, {50, 8},
		{51, 6}, {100, 6},
		{101, 4}, {1000, 4},
	}
	for _, tt := range tests {
		if got := BatchSizeFor(tt.total); got != tt.want {
			t.Errorf("BatchSizeFor(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestBatchCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{18, 2},   // 10 + 8
		{20, 2},   // 10 + 10
		{21, 3},   // 8 + 8 + 5
		{50, 7},   // ceil(50/8)
		{100, 17}, // ceil(100/6)
		{101, 26}, // ceil(101/4)
		{1000, 250},
	}
	for _, tt := range tests {
		if got := BatchCount(tt.total); got != tt.want {
			t.Errorf("BatchCount(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestPartition(t *testing.T) {
	tasks := make([]query.Task, 18)
	for i := range tasks {
		tasks[i].Phrase = string(rune('a' + i))
	}

	batches := Partition(tasks, BatchSizeFor(len(tasks)))
	if len(batches) != 2 {
		t.Fatalf("len = %d, want 2", len(batches))
	}
	if len(batches[0]) != 10 || len(batches[1]) != 8 {
		t.Errorf("sizes = %d, %d", len(batches[0]), len(batches[1]))
	}
	if batches[1][0].Phrase != "k" {
		t.Errorf("order not preserved: %q", batches[1][0].Phrase)
	}
	if cap(batches[0]) != 10 {
		t.Error("batches must not share spare capacity")
	}

	if Partition(nil, 4) != nil || Partition(tasks, 0) != nil {
		t.Error("empty input or size yields no batches")
	}
}

func TestBatchCountMatchesPartition(t *testing.T) {
	for total := 1; total <= 300; total++ {
		tasks := make([]query.Task, total)
		if got, want := len(Partition(tasks, BatchSizeFor(total))), BatchCount(total); got != want {
			t.Fatalf("total %d: partition gives %d batches, BatchCount %d", total, got, want)
		}
	}
}
