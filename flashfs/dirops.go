package flashfs

// listDir walks a directory's block chain and returns every live entry
// together with the slot it occupies (needed by callers that overwrite or
// free a specific entry in place).
func (fs *FS) listDir(first uint32) ([]dirent, []dirSlot, error) {
	perBlock := entriesPerBlock(fs.cfg.BlockSize)
	var entries []dirent
	var slots []dirSlot

	block := first
	for block != 0 {
		buf := make([]byte, fs.cfg.BlockSize)
		if err := fs.io.Read(block, 0, buf); err != nil {
			return nil, nil, err
		}
		for i := 0; i < perBlock; i++ {
			off := uint32(i * direntSize)
			raw := buf[off : off+direntSize]
			d := unmarshalDirent(raw)
			if d.kind == kindFree {
				continue
			}
			entries = append(entries, d)
			slots = append(slots, dirSlot{block: block, offset: off})
		}
		next, err := fs.readNext(block)
		if err != nil {
			return nil, nil, err
		}
		block = next
	}
	return entries, slots, nil
}

func (fs *FS) findInDir(dirBlock uint32, name string) (dirent, dirSlot, bool, error) {
	entries, slots, err := fs.listDir(dirBlock)
	if err != nil {
		return dirent{}, dirSlot{}, false, err
	}
	for i, e := range entries {
		if e.nameString() == name {
			return e, slots[i], true, nil
		}
	}
	return dirent{}, dirSlot{}, false, nil
}

// writeEntry stores d at slot.
func (fs *FS) writeEntry(slot dirSlot, d dirent) error {
	buf := make([]byte, direntSize)
	d.marshal(buf)
	return fs.io.Prog(slot.block, slot.offset, buf)
}

// addEntry appends d to the first free slot in the chain rooted at first,
// extending the chain with a new block if every existing block is full.
func (fs *FS) addEntry(first uint32, d dirent) error {
	perBlock := entriesPerBlock(fs.cfg.BlockSize)
	block := first
	var last uint32
	for block != 0 {
		last = block
		buf := make([]byte, fs.cfg.BlockSize)
		if err := fs.io.Read(block, 0, buf); err != nil {
			return err
		}
		for i := 0; i < perBlock; i++ {
			off := uint32(i * direntSize)
			if buf[off] == kindFree {
				return fs.writeEntry(dirSlot{block: block, offset: off}, d)
			}
		}
		next, err := fs.readNext(block)
		if err != nil {
			return err
		}
		block = next
	}
	next, err := fs.appendBlock(last)
	if err != nil {
		return err
	}
	return fs.writeEntry(dirSlot{block: next, offset: 0}, d)
}

// removeEntry marks a slot free.
func (fs *FS) removeEntry(slot dirSlot) error {
	return fs.writeEntry(slot, dirent{kind: kindFree})
}
