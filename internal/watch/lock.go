package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/pillbox/internal/constants"
)

var findProcessFunc = ps.FindProcess

// ErrAlreadyRunning is returned when another watch daemon holds the lock.
var ErrAlreadyRunning = errors.New("watch daemon already running")

// lockfile keeps a single daemon per config directory. It records the pid;
// a stale file left by a dead process is taken over.
type lockfile struct {
	path string
}

func newLockfile(dir string) *lockfile {
	return &lockfile{path: filepath.Join(dir, constants.WatchLockfileName)}
}

func (l *lockfile) acquire() error {
	if content, err := os.ReadFile(l.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(content))); err == nil && pid != os.Getpid() {
			process, err := findProcessFunc(pid)
			if err == nil && process != nil && strings.HasPrefix(process.Executable(), constants.AppName) {
				return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0600)
}

func (l *lockfile) release() error {
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
