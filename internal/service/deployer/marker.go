package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/crx-deploy/internal/config"
	"github.com/oshokin/crx-deploy/internal/logger"
)

// MarkerFilename marks that a deployment is running right now to avoid parallel runs.
const MarkerFilename = "crx-deploy.pid"

var errDeploymentRunning = errors.New("another deployment is running")

// acquireMarker creates the marker file holding this process ID.
// A marker left behind by a process that no longer exists is replaced.
func acquireMarker(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	for range 2 {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, config.DefaultFilePermissions)
		if err == nil {
			_, err = f.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				return fmt.Errorf("write deployment marker: %w", err)
			}

			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create deployment marker: %w", err)
		}

		running, pid := markerOwnerRunning(path)
		if running {
			return fmt.Errorf("%w (pid %d, marker %s)", errDeploymentRunning, pid, path)
		}

		logger.InfoKV(ctx, "Removing stale deployment marker", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale deployment marker: %w", err)
		}
	}

	return fmt.Errorf("%w (marker %s)", errDeploymentRunning, path)
}

// releaseMarker removes the marker if this process owns it.
func releaseMarker(ctx context.Context, path string) {
	path = filepath.Clean(path)

	if pid, err := readMarker(path); err != nil || pid != os.Getpid() {
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warnf(ctx, "Unable to remove deployment marker: %v", err)
	}
}

// markerOwnerRunning reports whether the process recorded in the marker is alive.
// An unreadable marker is treated as stale.
func markerOwnerRunning(path string) (bool, int) {
	pid, err := readMarker(path)
	if err != nil {
		return false, 0
	}

	if pid == os.Getpid() {
		return true, pid
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return false, pid
	}

	return true, pid
}

func readMarker(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(string(contents)))
}
