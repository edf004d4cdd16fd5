package transcript

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
)

// LockConfig bounds how long Write waits for another process holding the
// same transcript.
type LockConfig struct {
	LockRetry    time.Duration
	LockMaxRetry int
}

func DefaultLockConfig() LockConfig {
	return LockConfig{
		LockRetry:    50 * time.Millisecond,
		LockMaxRetry: 100,
	}
}

type fileLock struct {
	lock       *flock.Flock
	lockPath   string
	acquiredAt time.Time
}

// acquireLock takes an exclusive advisory lock on path + ".lock".
func acquireLock(path string, cfg LockConfig) (*fileLock, error) {
	if cfg.LockMaxRetry < 1 {
		cfg.LockMaxRetry = 1
	}

	lockPath := path + ".lock"
	fl := &fileLock{lock: flock.New(lockPath), lockPath: lockPath}

	for i := 0; i < cfg.LockMaxRetry; i++ {
		locked, err := fl.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			fl.acquiredAt = time.Now()
			return fl, nil
		}

		if i < cfg.LockMaxRetry-1 {
			time.Sleep(cfg.LockRetry)
		}
	}

	return nil, fmt.Errorf("transcript %s is locked by another writer (gave up after %d attempts)", path, cfg.LockMaxRetry)
}

func (fl *fileLock) unlock() {
	if err := fl.lock.Unlock(); err != nil {
		slog.Error("Failed to release transcript lock", "path", fl.lockPath, "error", err)
		return
	}
	slog.Debug("Transcript lock released", "path", fl.lockPath, "held_duration_ms", time.Since(fl.acquiredAt).Milliseconds())
}
