package asyncfs

import "errors"

var (
	// ErrBusy is returned by every entry point while isBusy() is true
	// (spec.md §4.G, property P6).
	ErrBusy = errors.New("asyncfs: busy")

	// ErrTooLarge is returned by FileOpenWriteCloseAsync when src exceeds
	// the fixed OWC staging buffer (spec.md §9 Open Question: the async
	// write-buffer is fixed at 1024 bytes, not the library cache size;
	// callers must chunk rather than have the write silently truncated).
	ErrTooLarge = errors.New("asyncfs: write exceeds OWC staging buffer")
)
