package fileio

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Mover relocates runner-produced artifacts from a staging area into
// permanent storage.
type Mover interface {
	Move(stagingPath, finalPath string) error
	Remove(path string) error
}

// DiskMover is a Mover over the local filesystem.
type DiskMover struct {
	// rootDir prefixes every path the mover touches, useful for testing
	rootDir string
}

func NewDiskMover() *DiskMover {
	return &DiskMover{}
}

// Make sure we conform to Mover interface
var _ Mover = (*DiskMover)(nil)

// SetRootdir sets the root directory for the mover, useful for testing
func (m *DiskMover) SetRootdir(path string) {
	m.rootDir = path
}

// PathFor returns the full path for the provided file
func (m *DiskMover) PathFor(filePath string) string {
	return path.Join(m.rootDir, filePath)
}

// Move relocates a file, falling back to copy+remove when the rename crosses
// filesystems.
func (m *DiskMover) Move(stagingPath, finalPath string) error {
	src := m.PathFor(stagingPath)
	dst := m.PathFor(finalPath)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func (m *DiskMover) Remove(filePath string) error {
	if err := os.Remove(m.PathFor(filePath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
