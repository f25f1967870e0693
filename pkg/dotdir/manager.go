// Package dotdir manages the .ocrfast/ and ~/.ocrfast directories.
//
// The directory holds config.toml, the persisted document store and the
// service log file written by "ocrfast serve".
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the ocrfast directory.
	dirName = ".ocrfast"

	// storeDirName is the store directory inside the ocrfast directory.
	storeDirName = "store"

	// logFileName is the service log written by long running commands.
	logFileName = "ocrfast.log"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .ocrfast/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.ocrfast/ dir
//  3. Home ~/.ocrfast/ dir (created if missing)
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating ocrfast directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// StoreDir returns the default document store directory under the resolved
// .ocrfast/ directory. The store creates it on open.
func (m *Manager) StoreDir(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, storeDirName), nil
}

// LogFile returns the path of the service log file under the resolved
// .ocrfast/ directory.
func (m *Manager) LogFile(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, logFileName), nil
}

// localDirExists checks whether a .ocrfast/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
