// Package asyncfs implements the cooperative, non-blocking filesystem
// adapter spec.md §4.G specifies: a scheduler Task that advances mount,
// plain open, and open-write-close sequences one bounded step per tick
// instead of blocking the caller until each completes.
package asyncfs

import (
	"github.com/DelfiSpace/SDCard/blockdev"
	"github.com/DelfiSpace/SDCard/flashfs"
	"github.com/DelfiSpace/SDCard/fsshim"
	"github.com/DelfiSpace/SDCard/sdlog"
)

// Driver is the async FS adapter. It implements sched.Task (Run, Notified)
// so a Loop can tick it; Err/Mounted/Opened are the observable latches
// spec.md §7 requires since no error is returned from Run itself.
type Driver struct {
	bd    blockdev.Callbacks
	table *fsshim.Table
	cfg   flashfs.Config
	fs    *flashfs.FS
	log   sdlog.Logger

	cur  step
	err  error
	file *flashfs.File

	mounted bool
	opened  bool
}

var current *Driver

// NewDriver binds a Driver to a block device and filesystem geometry. It
// reads only bd's ReadSize/ProgramSize (through fsshim.New) and does not
// initialize bd until MountAsync is called. It registers itself as
// the process-wide singleton a scheduler task-callback trampolines
// through; Release clears that registration.
func NewDriver(bd blockdev.Callbacks, blockSize uint64, cfg flashfs.Config, log sdlog.Logger) *Driver {
	if log == nil {
		log = sdlog.Discard()
	}
	d := &Driver{
		bd:    bd,
		table: fsshim.New(bd, blockSize),
		cfg:   cfg,
		log:   log,
	}
	current = d
	return d
}

// Instance returns the process-wide Driver singleton, or nil if none is
// registered (spec.md §4.G: "set on construction, cleared on destruction").
func Instance() *Driver { return current }

// Release clears the singleton registration if d currently holds it.
func (d *Driver) Release() {
	if current == d {
		current = nil
	}
}

// Notified reports whether a step is pending, i.e. current_op != Idle.
func (d *Driver) Notified() bool { return d.cur != nil }

// IsBusy is Notified under the name spec.md §4.G's entry points use.
func (d *Driver) IsBusy() bool { return d.Notified() }

// Err returns the last latched error. It is cleared when a mount, a plain
// open or a whole OWC sequence next completes successfully, whichever kind
// of operation latched it, and never implicitly otherwise.
func (d *Driver) Err() error { return d.err }

// Mounted reports whether the last mount_async completed successfully.
func (d *Driver) Mounted() bool { return d.mounted }

// Opened reports whether a file handle is currently open.
func (d *Driver) Opened() bool { return d.opened }

// CurrentOp projects the driver's step onto spec.md §3's current_op tag.
func (d *Driver) CurrentOp() Op {
	if d.cur == nil {
		return OpIdle
	}
	return d.cur.op()
}

// File returns the handle a completed Open or OpenWriteClose step left
// behind, or nil if none is open.
func (d *Driver) File() *flashfs.File { return d.file }

// Run executes exactly one bounded step of whatever operation is pending.
func (d *Driver) Run() {
	if d.cur == nil {
		d.log.Printf("asyncfs: Unknown Operation")
		return
	}
	d.cur.run(d)
}

// MountAsync performs the synchronous bd.Init() spec.md §4.G calls for
// (failing fast if it errors) and arms the Mount step; the library mount
// itself happens on the next Run().
func (d *Driver) MountAsync() error {
	if d.IsBusy() {
		return ErrBusy
	}
	if err := d.bd.Init(); err != nil {
		return err
	}
	d.cur = mountStep{}
	return nil
}

// FileOpenAsync arms a plain Open step. Guarded by the mounted/opened
// latches the way the library's "already opened" bit guards file_open_async.
func (d *Driver) FileOpenAsync(path string, flags int) error {
	if d.IsBusy() {
		return ErrBusy
	}
	if !d.mounted {
		return flashfs.ErrNotMounted
	}
	if d.opened {
		return flashfs.ErrOpen
	}
	d.cur = openStep{path: path, flags: flags}
	return nil
}

// FileOpenWriteCloseAsync stages src (which must fit the fixed OWC
// buffer — spec.md §9's Open Question, resolved here as an explicit
// caller-chunks contract rather than a silent truncation) and arms the
// OpenWriteClose step.
func (d *Driver) FileOpenWriteCloseAsync(path string, flags int, src []byte) error {
	if d.IsBusy() {
		return ErrBusy
	}
	if !d.mounted {
		return flashfs.ErrNotMounted
	}
	if d.opened {
		return flashfs.ErrOpen
	}
	if uint32(len(src)) > d.cfg.WriteStagingSize {
		return ErrTooLarge
	}
	buf := append([]byte(nil), src...)
	d.cur = owcOpenStep{path: path, flags: flags, buf: buf}
	return nil
}
