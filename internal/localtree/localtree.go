// Package localtree is the facade for all local-filesystem writes the
// receiver performs: every downloaded file goes through a named temporary
// file in its destination directory, atomically renamed into place only on
// explicit finalize.
package localtree

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Tree addresses a local directory as the destination for downloads.
type Tree struct {
	root string
}

// New constructs a Tree rooted at root.
func New(root string) Tree {
	return Tree{root: root}
}

// WriteFile is a file being written into the tree. It becomes visible under
// its final name only once Finalize is called; Discard (or simply never
// finalizing) leaves no trace under the final name.
type WriteFile struct {
	finalPath string
	temp      *renameio.PendingFile
}

// Create opens a new WriteFile for the given relative path. The temporary
// file lives in the same directory as the final path, so the eventual
// rename is same-filesystem and atomic. Any missing parent directories are
// created first (recursive downloads may reference a file before any
// sibling establishes its containing directory).
func (t Tree) Create(relPath string) (*WriteFile, error) {
	finalPath := filepath.Join(t.root, relPath)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o777); err != nil {
		return nil, err
	}
	temp, err := renameio.NewPendingFile(finalPath, renameio.WithExistingPermissions())
	if err != nil {
		return nil, err
	}
	return &WriteFile{finalPath: finalPath, temp: temp}, nil
}

// Mkdir ensures the directory at the given relative path exists. It is
// used for file-list entries that are directories themselves, including
// ones with no regular-file descendants.
func (t Tree) Mkdir(relPath string) error {
	return os.MkdirAll(filepath.Join(t.root, relPath), 0o777)
}

// Write appends to the temporary file.
func (w *WriteFile) Write(p []byte) (int, error) {
	return w.temp.Write(p)
}

// FinalPath is the path this file will occupy once finalized.
func (w *WriteFile) FinalPath() string {
	return w.finalPath
}

// Finalize atomically renames the temporary file to its final path.
func (w *WriteFile) Finalize() error {
	return w.temp.CloseAtomicallyReplace()
}

// Discard abandons the temporary file; the final path is left untouched.
func (w *WriteFile) Discard() error {
	return w.temp.Cleanup()
}
