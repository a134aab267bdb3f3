package util

import "sync"

// DoWorkList runs work over every item with at most limit goroutines at a time and
// returns the results in input order. A limit below one means no bound.
func DoWorkList[T any, R any](list []T, limit int, work func(T) R) []R {
	results := make([]R, len(list))
	if limit < 1 {
		limit = len(list)
	}
	sem := make(chan struct{}, max(limit, 1))
	var wg sync.WaitGroup

	for i, item := range list {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, value T) {
			defer func() {
				<-sem
				wg.Done()
			}()
			results[index] = work(value)
		}(i, item)
	}

	wg.Wait()
	return results
}
