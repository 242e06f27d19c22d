package scheduler

// LockTable maps normalized write-target keys to the id of the task currently
// holding them. It is plain shared state owned by the scheduler loop, which
// is its only caller; mutation happens only at admission and completion, so
// no mutex is needed.
//
// Acquisition is all-or-nothing: a task is granted either every key it
// declares or none. Locks are held only for the duration of one running
// attempt and there is no cross-task lock ordering, so contention always
// resolves as the holder completes.
type LockTable struct {
	owners map[string]string // key -> holding task id
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{owners: make(map[string]string)}
}

// TryAcquire atomically claims every key for taskID. If any key is held by
// another task, nothing is claimed and false is returned. Re-claiming keys
// the task already holds is a no-op.
func (t *LockTable) TryAcquire(taskID string, keys []string) bool {
	for _, key := range keys {
		if holder, held := t.owners[key]; held && holder != taskID {
			return false
		}
	}
	for _, key := range keys {
		t.owners[key] = taskID
	}
	return true
}

// Release frees every key held by taskID among the given keys. Keys held by
// other tasks are left untouched.
func (t *LockTable) Release(taskID string, keys []string) {
	for _, key := range keys {
		if t.owners[key] == taskID {
			delete(t.owners, key)
		}
	}
}

// Holder returns the task currently holding the key, if any.
func (t *LockTable) Holder(key string) (string, bool) {
	holder, held := t.owners[key]
	return holder, held
}

// Free reports whether every given key is currently unheld or held by taskID.
func (t *LockTable) Free(taskID string, keys []string) bool {
	for _, key := range keys {
		if holder, held := t.owners[key]; held && holder != taskID {
			return false
		}
	}
	return true
}
