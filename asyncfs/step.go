package asyncfs

import "github.com/DelfiSpace/SDCard/flashfs"

// step is the tagged sum spec.md §9's redesign note calls for: one
// implementing type per current_op variant, carrying only that variant's
// data. A Driver holds at most one step, nil meaning Idle; illegal
// transitions are unrepresentable since each step's run only ever produces
// the next step its own variant allows.
type step interface {
	run(d *Driver)
	op() Op
}

type mountStep struct{}

func (mountStep) op() Op { return OpMount }

func (mountStep) run(d *Driver) {
	fs, err := flashfs.Mount(d.table, d.cfg)
	d.cur = nil
	if err != nil {
		d.log.Printf("asyncfs: mount failed: %v", err)
		d.mounted = false
		d.err = err
		return
	}
	d.fs = fs
	d.mounted = true
	d.err = nil
}

type openStep struct {
	path  string
	flags int
}

func (openStep) op() Op { return OpOpen }

func (s openStep) run(d *Driver) {
	f, err := d.fs.FileOpen(s.path, s.flags)
	d.cur = nil
	if err != nil {
		d.log.Printf("asyncfs: open %q failed: %v", s.path, err)
		d.err = err
		return
	}
	d.file = f
	d.opened = true
	d.err = nil
}

// owcOpenStep is current_op 4: open for the write-then-close sequence.
// On completion it hands off to writeStep with the pre-staged buffer.
type owcOpenStep struct {
	path  string
	flags int
	buf   []byte
}

func (owcOpenStep) op() Op { return OpOpenWriteClose }

func (s owcOpenStep) run(d *Driver) {
	f, err := d.fs.FileOpen(s.path, s.flags)
	if err != nil {
		d.cur = nil
		d.log.Printf("asyncfs: owc open %q failed: %v", s.path, err)
		d.err = err
		return
	}
	d.file = f
	d.opened = true
	d.cur = writeStep{buf: s.buf}
}

// writeStep is current_op 5: synchronous write of the staged buffer.
type writeStep struct {
	buf []byte
}

func (writeStep) op() Op { return OpWriteStep }

func (s writeStep) run(d *Driver) {
	_, err := d.file.Write(s.buf)
	if err != nil {
		d.cur = nil
		d.opened = false
		d.file = nil
		d.log.Printf("asyncfs: OWC write failed: %v", err)
		d.err = err
		return
	}
	d.cur = closeStep{}
}

// closeStep is current_op 6: synchronous close ending the OWC sequence.
type closeStep struct{}

func (closeStep) op() Op { return OpCloseStep }

func (closeStep) run(d *Driver) {
	err := d.file.Close()
	d.file = nil
	d.opened = false
	d.cur = nil
	if err != nil {
		d.log.Printf("asyncfs: OWC close failed: %v", err)
		d.err = err
		return
	}
	d.log.Printf("OWC Success")
	d.err = nil
}
