package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var ErrAlreadyRunning = errors.New("rehearse session already running")

var errSocketBusy = errors.New("socket still in use")

// RuntimeSocketPath resolves the owner socket under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "rehearse.sock"), nil
}

// Acquire binds the owner socket, unlinking a stale socket file when no
// owner answers on it. A responsive owner yields ErrAlreadyRunning.
func Acquire(
	ctx context.Context,
	path string,
	probeTimeout time.Duration,
	retries int,
	rescue func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}
	if retries < 0 {
		retries = 0
	}

	var listener net.Listener
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewFibonacci(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		l, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			listener = l
			return nil
		}
		if !isAddrInUse(err) {
			return fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		if alive {
			return ErrAlreadyRunning
		}
		if probeErr != nil {
			return fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}
		if rescue != nil {
			_ = rescue(ctx)
		}
		return retry.RetryableError(errSocketBusy)
	})
	if errors.Is(err, errSocketBusy) {
		return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
	}
	if err != nil {
		return nil, err
	}
	return listener, nil
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
