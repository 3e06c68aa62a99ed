package state

import "sync"

// Journal is an undo log shared by every in-memory component that takes part
// in a call. Components record how to reverse each mutation; a failed call
// reverts everything recorded after its snapshot.
type Journal struct {
	mu      sync.Mutex
	entries []entry
	depth   int
}

type entry struct {
	undo   func()
	commit func()
}

func NewJournal() *Journal {
	return &Journal{entries: make([]entry, 0)}
}

// Append records the reversal of a mutation that has just been applied.
func (j *Journal) Append(undo func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, entry{undo: undo})
	j.mu.Unlock()
}

// OnCommit registers fn to run once the outermost call ends successfully.
// It is discarded if the call that registered it is reverted.
func (j *Journal) OnCommit(fn func()) {
	if j == nil {
		fn()
		return
	}
	j.mu.Lock()
	if j.depth == 0 {
		j.mu.Unlock()
		fn()
		return
	}
	j.entries = append(j.entries, entry{commit: fn})
	j.mu.Unlock()
}

func (j *Journal) Snapshot() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.entries)
}

// RevertToSnapshot undoes, newest first, every mutation recorded after the snapshot.
func (j *Journal) RevertToSnapshot(snapshot int) {
	if j == nil {
		return
	}
	j.mu.Lock()
	if snapshot < 0 || snapshot > len(j.entries) {
		j.mu.Unlock()
		return
	}
	reverted := j.entries[snapshot:]
	j.entries = j.entries[:snapshot]
	j.mu.Unlock()

	for i := len(reverted) - 1; i >= 0; i-- {
		if reverted[i].undo != nil {
			reverted[i].undo()
		}
	}
}

// Begin opens a call and returns its snapshot. Calls nest.
func (j *Journal) Begin() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	j.depth++
	return len(j.entries)
}

// End closes a call opened by Begin. A non-nil err reverts the call. Once the
// outermost call ends the commit hooks run and the log is emptied, nothing can
// be reverted past it.
func (j *Journal) End(snapshot int, err error) {
	if j == nil {
		return
	}
	if err != nil {
		j.RevertToSnapshot(snapshot)
	}

	j.mu.Lock()
	if j.depth > 0 {
		j.depth--
	}
	if j.depth != 0 {
		j.mu.Unlock()
		return
	}
	committed := j.entries
	j.entries = make([]entry, 0)
	j.mu.Unlock()

	for _, e := range committed {
		if e.commit != nil {
			e.commit()
		}
	}
}
