package flashfs

import "strings"

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return nil, ErrBadPath
		}
		if len(p) > nameMax {
			return nil, ErrNameTooLong
		}
	}
	return parts, nil
}

// resolveParent walks every component but the last, requiring each to be a
// directory, and returns the last component's containing directory block
// plus its own name.
func (fs *FS) resolveParent(path string) (parentBlock uint32, name string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	if len(parts) == 0 {
		return 0, "", ErrBadPath
	}
	block := fs.root
	for _, p := range parts[:len(parts)-1] {
		entry, _, ok, err := fs.findInDir(block, p)
		if err != nil {
			return 0, "", err
		}
		if !ok {
			return 0, "", ErrNotFound
		}
		if entry.kind != kindDir {
			return 0, "", ErrNotDir
		}
		block = entry.firstBlock
	}
	return block, parts[len(parts)-1], nil
}

// lookup resolves a full path to its directory entry and the slot it
// occupies in its parent.
func (fs *FS) lookup(path string) (dirent, dirSlot, error) {
	parts, err := splitPath(path)
	if err != nil {
		return dirent{}, dirSlot{}, err
	}
	if len(parts) == 0 {
		// The root itself: synthesize an entry, it has no slot of its own.
		return dirent{kind: kindDir, firstBlock: fs.root}, dirSlot{}, nil
	}
	parentBlock, name, err := fs.resolveParent(path)
	if err != nil {
		return dirent{}, dirSlot{}, err
	}
	entry, slot, ok, err := fs.findInDir(parentBlock, name)
	if err != nil {
		return dirent{}, dirSlot{}, err
	}
	if !ok {
		return dirent{}, dirSlot{}, ErrNotFound
	}
	return entry, slot, nil
}
