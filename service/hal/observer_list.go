package hal

// observerList is an ordered set of observers. Registration order is
// preserved for fan-out; double registration is deduplicated. Snapshot
// returns a copy so that an observer may add or remove observers from within
// its own callback without invalidating an in-progress iteration.
type observerList[T comparable] struct {
	items []T
}

func (l *observerList[T]) Add(o T) {
	for _, item := range l.items {
		if item == o {
			return
		}
	}
	l.items = append(l.items, o)
}

func (l *observerList[T]) Remove(o T) {
	for i, item := range l.items {
		if item == o {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *observerList[T]) Snapshot() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *observerList[T]) Len() int {
	return len(l.items)
}
