package flashfs

import "errors"

// Error taxonomy for the filesystem layer, following the same
// sentinel-per-failure-mode convention as package sd (spec.md §7).
var (
	ErrNotMounted  = errors.New("flashfs: not mounted")
	ErrOpen        = errors.New("flashfs: already open")
	ErrNotOpen     = errors.New("flashfs: not open")
	ErrNotFound    = errors.New("flashfs: no such file or directory")
	ErrExist       = errors.New("flashfs: file or directory exists")
	ErrNotDir      = errors.New("flashfs: not a directory")
	ErrIsDir       = errors.New("flashfs: is a directory")
	ErrNotEmpty    = errors.New("flashfs: directory not empty")
	ErrNoSpace     = errors.New("flashfs: no space left on device")
	ErrCorrupt     = errors.New("flashfs: corrupt filesystem")
	ErrNameTooLong = errors.New("flashfs: name too long")
	ErrBadPath     = errors.New("flashfs: invalid path")
)
