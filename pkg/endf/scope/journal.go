package scope

// Journal is an append-only undo log. Entries are only recorded while a
// mark is open, so code running without a mark pays nothing.
type Journal struct {
	undo  []func()
	marks int
}

// Mark is a position in the journal.
type Mark int

// Active reports whether a mark is open.
func (j *Journal) Active() bool {
	return j.marks > 0
}

// Record appends an undo action when a mark is open.
func (j *Journal) Record(undo func()) {
	if j.Active() {
		j.undo = append(j.undo, undo)
	}
}

// Mark opens a mark at the current position.
func (j *Journal) Mark() Mark {
	j.marks++
	return Mark(len(j.undo))
}

// Rollback undoes every action recorded since m, newest first, and closes m.
func (j *Journal) Rollback(m Mark) {
	for i := len(j.undo) - 1; i >= int(m); i-- {
		j.undo[i]()
		j.undo[i] = nil
	}
	j.undo = j.undo[:m]
	j.close()
}

func (j *Journal) close() {
	if j.marks > 0 {
		j.marks--
	}
	if j.marks == 0 {
		j.undo = j.undo[:0]
	}
}

// Len returns the number of recorded actions.
func (j *Journal) Len() int {
	return len(j.undo)
}
