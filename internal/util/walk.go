package util

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// WalkFunc is called for each file visited during the walk. Errors are logged and
// collected; they do not stop the walk.
type WalkFunc func(path string) error
type SkipFunc func(path string, isDir bool) bool

// WalkDirTree traverses a directory tree, calling walkFn for every file not skipped from
// numThreads worker goroutines. No ordering is guaranteed. The returned error joins
// every walkFn error.
func WalkDirTree(root string, walkFn WalkFunc, skipPath SkipFunc, logger *zap.Logger, numThreads int) error {
	if numThreads < 1 {
		numThreads = 1
	}
	if _, err := os.Lstat(root); err != nil {
		logger.Error("WalkDirTree - Failed to stat root", zap.String("path", root), zap.Error(err))
		return err
	}

	workQueue := make(chan string, numThreads*2)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for i := 0; i < numThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workQueue {
				if err := walkFn(path); err != nil {
					logger.Error("WalkDirTree - Failed to process file", zap.String("path", path), zap.Error(err))
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	walk(root, workQueue, skipPath, logger)
	close(workQueue)
	wg.Wait()

	return errors.Join(errs...)
}

// walk recursively traverses the directory tree and sends files to the work queue
func walk(path string, fileQueue chan<- string, skipPath SkipFunc, logger *zap.Logger) {
	if skipPath(path, true) {
		logger.Debug("WalkDirTree - Skipping path", zap.String("path", path))
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		logger.Error("WalkDirTree - Failed to read directory", zap.String("path", path), zap.Error(err))
		return
	}

	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			walk(childPath, fileQueue, skipPath, logger)
			continue
		}
		if !entry.Type().IsRegular() || skipPath(childPath, false) {
			continue
		}
		fileQueue <- childPath
	}
}
