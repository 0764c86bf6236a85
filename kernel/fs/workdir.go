package fs

import (
	"path"
	"sync"
)

// WorkDir is a process's current directory.
type WorkDir struct {
	mu   sync.Mutex
	path string
}

func NewWorkDir(p string) *WorkDir {
	return &WorkDir{path: path.Clean("/" + p)}
}

func (w *WorkDir) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *WorkDir) Set(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = path.Clean("/" + p)
}

// Clone returns an independent copy, as a forked child gets.
func (w *WorkDir) Clone() *WorkDir {
	return NewWorkDir(w.Path())
}

// Resolve turns name into an absolute, clean path.
func (w *WorkDir) Resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(w.Path(), name)
}
