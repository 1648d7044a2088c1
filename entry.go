package diskcache

import "iter"

// entry is the in-memory state of one key.
type entry struct {
	key      string
	length   int64 // bytes of the clean value, 0 until the first commit
	readable bool  // a committed value exists
	editor   *Editor

	// interrupted marks a DIRTY line with no CLEAN or REMOVE after it. Only set
	// during replay.
	interrupted bool

	next, prev *entry
}

// entryTable maps keys to entries and keeps them in access order.
// head is the most recently used entry, tail the least.
// Callers must hold the cache lock.
type entryTable struct {
	items map[string]*entry
	head  *entry
	tail  *entry
}

func newEntryTable() *entryTable {
	return &entryTable{items: make(map[string]*entry)}
}

func (t *entryTable) len() int { return len(t.items) }

// lookup returns the entry for key without refreshing its position.
func (t *entryTable) lookup(key string) (*entry, bool) {
	e, ok := t.items[key]
	return e, ok
}

// getOrCreate returns the entry for key as most recently used, creating it if
// necessary. created reports whether it was new.
func (t *entryTable) getOrCreate(key string) (e *entry, created bool) {
	if e, ok := t.items[key]; ok {
		t.touch(e)
		return e, false
	}
	e = &entry{key: key}
	t.items[key] = e
	t.pushFront(e)
	return e, true
}

// touch marks e as most recently used.
func (t *entryTable) touch(e *entry) {
	if t.head == e {
		return
	}
	t.unlink(e)
	t.pushFront(e)
}

func (t *entryTable) remove(e *entry) {
	t.unlink(e)
	delete(t.items, e.key)
}

func (t *entryTable) pushFront(e *entry) {
	e.prev = nil
	e.next = t.head
	if t.head != nil {
		t.head.prev = e
	}
	t.head = e
	if t.tail == nil {
		t.tail = e
	}
}

func (t *entryTable) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if t.head == e {
		t.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if t.tail == e {
		t.tail = e.prev
	}
	e.next, e.prev = nil, nil
}

// oldestFirst yields entries from least to most recently used. The yielded
// entry may be removed during iteration.
func (t *entryTable) oldestFirst() iter.Seq[*entry] {
	return func(yield func(*entry) bool) {
		for e := t.tail; e != nil; {
			prev := e.prev
			if !yield(e) {
				return
			}
			e = prev
		}
	}
}

// oldestEvictable returns the least recently used entry without a live writer.
func (t *entryTable) oldestEvictable() *entry {
	for e := range t.oldestFirst() {
		if e.editor == nil {
			return e
		}
	}
	return nil
}
