package flashfs

import "io"

// Dir is an open directory handle, listing the entries present at open
// time (original_source/LittleFS.h's dir_open/read/seek/tell/rewind).
type Dir struct {
	fs      *FS
	entries []dirent
	pos     int
}

// DirOpen resolves path (root included) and snapshots its entries.
func (fs *FS) DirOpen(path string) (*Dir, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	entry, _, err := fs.lookup(path)
	if err != nil {
		return nil, err
	}
	if entry.kind != kindDir {
		return nil, ErrNotDir
	}
	entries, _, err := fs.listDir(entry.firstBlock)
	if err != nil {
		return nil, err
	}
	return &Dir{fs: fs, entries: entries}, nil
}

// Read returns the next entry, io.EOF once every entry has been returned.
func (d *Dir) Read() (FileInfo, error) {
	if d.pos >= len(d.entries) {
		return FileInfo{}, io.EOF
	}
	e := d.entries[d.pos]
	d.pos++
	return FileInfo{Name: e.nameString(), Size: uint64(e.size), IsDir: e.kind == kindDir}, nil
}

// Seek repositions the iteration cursor to an index previously returned by Tell.
func (d *Dir) Seek(pos int) error {
	if pos < 0 || pos > len(d.entries) {
		return ErrBadPath
	}
	d.pos = pos
	return nil
}

// Tell returns the current iteration cursor.
func (d *Dir) Tell() int { return d.pos }

// Rewind resets iteration to the first entry.
func (d *Dir) Rewind() { d.pos = 0 }

// Close releases the handle.
func (d *Dir) Close() error {
	d.fs = nil
	return nil
}
