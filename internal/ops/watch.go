package ops

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/watch"
)

// WatchInput contains parameters for the Watch operation.
type WatchInput struct {
	Path     string
	Debounce time.Duration
}

// Watch extracts the document once, then again after every settled change
// until ctx is done. Each change starts a forced run in the background, so
// a newer change supersedes a run still waiting on the parser. onResult is
// called for every outcome, including discarded runs, and may be called
// concurrently.
func Watch(ctx context.Context, env *Env, input WatchInput, onResult func(*ExtractOutput, error)) error {
	if strings.TrimSpace(input.Path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if _, err := document.IDForPath(input.Path); err != nil {
		return err
	}
	onResult(Extract(ctx, env, ExtractInput{Path: input.Path}))

	var wg sync.WaitGroup
	defer wg.Wait()

	w, err := watch.New(input.Path, input.Debounce, func(ctx context.Context, path string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := Extract(ctx, env, ExtractInput{Path: path, Force: true})
			if err != nil {
				env.Logger.Warn("re-extraction failed", zap.String("path", path), zap.Error(err))
			}
			onResult(out, err)
		}()
	}, env.Logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
