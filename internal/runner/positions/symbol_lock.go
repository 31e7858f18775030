package positions

import "sync"

type symbolLock struct {
	mu   sync.Mutex
	refs int
}

// symbolLocks — мьютекс на символ; запись живёт, пока её кто-то держит или ждёт.
type symbolLocks struct {
	mu sync.Mutex
	m  map[string]*symbolLock
}

func (l *symbolLocks) lock(symbol string) func() {
	l.mu.Lock()
	sl, ok := l.m[symbol]
	if !ok {
		sl = &symbolLock{}
		l.m[symbol] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Unlock()

			l.mu.Lock()
			sl.refs--
			if sl.refs == 0 {
				delete(l.m, symbol)
			}
			l.mu.Unlock()
		})
	}
}

func (l *symbolLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
