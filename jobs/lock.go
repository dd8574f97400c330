package jobs

import (
	"context"
	"time"

	"github.com/gofrs/flock"

	"github.com/teranos/jobtrail/errors"
)

const lockRetryDelay = 25 * time.Millisecond

// acquireLock takes the exclusive cross-process lock guarding the store file.
// It gives up after timeout, or earlier if ctx ends.
func acquireLock(ctx context.Context, lockPath string, timeout time.Duration) (*flock.Flock, error) {
	fl := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if ok {
		return fl, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "waiting for store lock")
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrStorageUnwritable, "store lock %s still held after %s", lockPath, timeout),
			"another jobtrail process is writing; retry, or raise store.lock_timeout_seconds")
	}
	return nil, errors.Mark(errors.Wrapf(err, "failed to lock %s", lockPath), errors.ErrStorageUnwritable)
}
