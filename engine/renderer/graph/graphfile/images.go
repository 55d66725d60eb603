package graphfile

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/common"
)

// decodeImages decodes every image file on a bounded worker pool. The pool's idle workers exit on
// their own after the timeout, so a WaitGroup is the barrier rather than the pool itself.
func decodeImages(paths []string, workers int) (map[string]common.TextureStagingData, error) {
	out := make(map[string]common.TextureStagingData, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	pool := worker.NewDynamicWorkerPool(min(workers, len(paths)), len(paths), time.Second)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, path := range paths {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				staging, err := common.DecodeImageFile(path)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return nil, err
				}
				out[path] = staging
				return nil, nil
			},
		})
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
