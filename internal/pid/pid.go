package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codeberg.org/mutker/powerctl/internal/errors"
)

const (
	pidFile = "powerctl.pid"
	runDir  = "/run"
)

// Path returns the PID file location: /run when running as root, the
// temp directory otherwise.
func Path() string {
	if os.Geteuid() == 0 {
		return filepath.Join(runDir, pidFile)
	}

	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to a PID file. A file left
// behind by a dead process is overwritten; a live one aborts the
// start.
func Write() error {
	return writeTo(Path())
}

// Remove removes the PID file.
func Remove() error {
	return removeFrom(Path())
}

func writeTo(path string) error {
	errFactory := errors.New()
	pid := os.Getpid()

	if _, err := os.Stat(path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		pid, err := strconv.Atoi(string(bytes))
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		err = process.Signal(syscall.Signal(0))
		if err == nil {
			return errFactory.WithData(errors.ErrAlreadyRunning, path)
		}
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func removeFrom(path string) error {
	errFactory := errors.New()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
