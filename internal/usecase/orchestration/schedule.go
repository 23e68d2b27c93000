package orchestration

import "github.com/kailas-cloud/aivis/internal/domain/query"

// BatchSizeFor returns how many tasks run concurrently in one batch for a run of
// total tasks. Bigger runs use smaller batches.
func BatchSizeFor(total int) int {
	switch {
	case total > 100:
		return 4
	case total > 50:
		return 6
	case total > 20:
		return 8
	default:
		return 10
	}
}

// BatchCount returns ceil(total / BatchSizeFor(total)).
func BatchCount(total int) int {
	if total <= 0 {
		return 0
	}
	size := BatchSizeFor(total)
	return (total + size - 1) / size
}

// Partition splits tasks into consecutive batches of at most size, preserving order.
func Partition(tasks []query.Task, size int) [][]query.Task {
	if size <= 0 || len(tasks) == 0 {
		return nil
	}
	batches := make([][]query.Task, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		batches = append(batches, tasks[start:end:end])
	}
	return batches
}
