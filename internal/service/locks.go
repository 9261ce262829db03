package service

import (
	"sort"
	"sync"
)

// ResellerLocks serializes ledger operations per reseller within the
// process. Every service working on the same store must share one value.
type ResellerLocks struct {
	mu    sync.Mutex
	locks map[int32]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func NewResellerLocks() *ResellerLocks {
	return &ResellerLocks{locks: make(map[int32]*keyedLock)}
}

// lock acquires the locks of every id in ascending order, so two operations
// spanning the same resellers cannot deadlock. Duplicates are ignored.
func (k *ResellerLocks) lock(ids ...int32) func() {
	unique := make([]int32, 0, len(ids))
	seen := make(map[int32]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	for _, id := range unique {
		k.acquire(id).Lock()
	}

	return func() {
		for i := len(unique) - 1; i >= 0; i-- {
			k.release(unique[i])
		}
	}
}

func (k *ResellerLocks) acquire(id int32) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	return l
}

// release unlocks id and drops its entry once nobody holds or waits on it.
func (k *ResellerLocks) release(id int32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l := k.locks[id]
	l.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
}

// Len reports how many resellers currently have a lock entry.
func (k *ResellerLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
