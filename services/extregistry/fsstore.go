package extregistry

import (
	"os"
	"path/filepath"
)

// FilesystemNotes serves notes straight from a directory tree, the way the
// CLI runs against an exported vault.
type FilesystemNotes struct {
	root string
}

func NewFilesystemNotes(root string) *FilesystemNotes {
	return &FilesystemNotes{root: root}
}

func (s *FilesystemNotes) ReadNote(path string) (string, error) {
	content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(content), nil
}
