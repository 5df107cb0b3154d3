package lru

import (
	"container/list"
	"sync"
	"time"

	"github.com/lucasew/diskcache/internal/eviction"
)

// LRU implements the eviction.Strategy interface using Least Recently Used logic.
//
// The list is kept ordered by last use, most recent at the front. Entries
// added with an older timestamp (e.g. by the startup scan) are inserted at
// their place instead of the front.
type LRU struct {
	mu    sync.Mutex
	list  *list.List
	items map[string]*list.Element
}

type entry struct {
	name string
	size int64
	at   time.Time
}

func init() {
	eviction.Register("lru", func() eviction.Strategy {
		return New()
	})
}

func New() *LRU {
	return &LRU{
		list:  list.New(),
		items: make(map[string]*list.Element),
	}
}

func (l *LRU) OnAdd(name string, size int64, at time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.items[name]; ok {
		ent := elem.Value.(*entry)
		oldSize := ent.size
		ent.size = size
		ent.at = at
		l.list.Remove(elem)
		l.items[name] = l.insert(ent)
		return size - oldSize
	}

	l.items[name] = l.insert(&entry{name: name, size: size, at: at})
	return size
}

func (l *LRU) OnAccess(name string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.items[name]; ok {
		ent := elem.Value.(*entry)
		ent.at = at
		l.list.Remove(elem)
		l.items[name] = l.insert(ent)
	}
}

func (l *LRU) Victim() (eviction.Victim, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem := l.list.Back()
	if elem == nil {
		return eviction.Victim{}, false
	}
	return toVictim(elem), true
}

func (l *LRU) Lookup(name string) (eviction.Victim, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.items[name]
	if !ok {
		return eviction.Victim{}, false
	}
	return toVictim(elem), true
}

func (l *LRU) Remove(name string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.items[name]
	if !ok {
		return 0, false
	}
	l.list.Remove(elem)
	delete(l.items, name)
	return elem.Value.(*entry).size, true
}

func (l *LRU) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.list.Init()
	l.items = make(map[string]*list.Element)
}

func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

// Entries returns the tracked entries, least recently used first.
func (l *LRU) Entries() []eviction.Victim {
	l.mu.Lock()
	defer l.mu.Unlock()

	victims := make([]eviction.Victim, 0, l.list.Len())
	for elem := l.list.Back(); elem != nil; elem = elem.Prev() {
		victims = append(victims, toVictim(elem))
	}
	return victims
}

// insert places ent after every entry used at or before ent.at.
func (l *LRU) insert(ent *entry) *list.Element {
	front := l.list.Front()
	if front == nil || !ent.at.Before(front.Value.(*entry).at) {
		return l.list.PushFront(ent)
	}
	for elem := l.list.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*entry).at.After(ent.at) {
			return l.list.InsertAfter(ent, elem)
		}
	}
	return l.list.PushFront(ent)
}

func toVictim(elem *list.Element) eviction.Victim {
	ent := elem.Value.(*entry)
	return eviction.Victim{Name: ent.name, Size: ent.size, At: ent.at}
}
