package settings

import (
	"os"
	"path/filepath"
)

// RemoveTree deletes dir and everything below it. It walks the tree with an
// explicit stack, so depth is bounded by memory rather than the call stack.
// Symbolic links are removed, never followed. It reports false without an
// error when dir is empty or not a directory.
func RemoveTree(dir string) (bool, error) {
	if dir == "" {
		return false, nil
	}
	info, err := os.Lstat(dir)
	if err != nil || !info.IsDir() {
		return false, nil
	}

	type frame struct {
		path     string
		expanded bool
	}
	stack := []frame{{path: dir}}

	for len(stack) > 0 {
		i := len(stack) - 1
		if stack[i].expanded {
			// All children are gone; the directory itself can go.
			if err = os.Remove(stack[i].path); err != nil {
				return false, err
			}
			stack = stack[:i]
			continue
		}

		stack[i].expanded = true
		current := stack[i].path
		entries, err := os.ReadDir(current)
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			path := filepath.Join(current, entry.Name())
			if entry.IsDir() {
				stack = append(stack, frame{path: path})
				continue
			}
			if err = os.Remove(path); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}
