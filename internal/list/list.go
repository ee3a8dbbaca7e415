// Package list provides the two intrusive doubly linked list flavours the
// scheduler needs: a plain list for the ready/pool queues, and an offset
// list for the sorted timeout queue. Nodes are not owned by the list they
// live on; an Elem carries its payload inline so no separate allocation
// backs a thread's list membership.
package list

// Elem is a node that can live on at most one List at a time. The zero
// value is a detached node ready to be inserted.
type Elem[T any] struct {
	next, prev *Elem[T]
	owner      *List[T]
	Value      T
}

// Linked reports whether e currently belongs to a list.
func (e *Elem[T]) Linked() bool {
	return e.owner != nil
}

// Detach removes e from whichever list currently owns it, if any. Unlike
// List.Remove, the caller does not need to know which list that is.
func (e *Elem[T]) Detach() {
	if e.owner != nil {
		e.owner.Remove(e)
	}
}

// List is an intrusive doubly linked list of Elem[T].
type List[T any] struct {
	head, tail *Elem[T]
	n          int
}

// Len returns the number of elements on the list.
func (l *List[T]) Len() int { return l.n }

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool { return l.n == 0 }

// Head returns the first element, or nil if the list is empty.
func (l *List[T]) Head() *Elem[T] { return l.head }

// Tail returns the last element, or nil if the list is empty.
func (l *List[T]) Tail() *Elem[T] { return l.tail }

// Append inserts e at the tail of the list.
func (l *List[T]) Append(e *Elem[T]) {
	l.mustBeDetached(e)
	e.owner = l
	e.prev = l.tail
	e.next = nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.n++
}

// Prepend inserts e at the head of the list. This is the scheduler's sole
// priority mechanism: a just-woken thread prepended here runs at the next
// switch.
func (l *List[T]) Prepend(e *Elem[T]) {
	l.mustBeDetached(e)
	e.owner = l
	e.next = l.head
	e.prev = nil
	if l.head != nil {
		l.head.prev = e
	} else {
		l.tail = e
	}
	l.head = e
	l.n++
}

// Remove detaches e from the list it is on. It is a no-op if e is not on
// this list.
func (l *List[T]) Remove(e *Elem[T]) {
	if e.owner != l {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev, e.owner = nil, nil, nil
	l.n--
}

// PopHead removes and returns the head element, or nil if empty.
func (l *List[T]) PopHead() *Elem[T] {
	h := l.head
	if h == nil {
		return nil
	}
	l.Remove(h)
	return h
}

// Each calls fn for every element from head to tail, stopping early if fn
// returns false. It is safe for fn to remove the current element from any
// list, but not to remove elements further along the iteration.
func (l *List[T]) Each(fn func(*Elem[T]) bool) {
	for e := l.head; e != nil; {
		next := e.next
		if !fn(e) {
			return
		}
		e = next
	}
}

func (l *List[T]) mustBeDetached(e *Elem[T]) {
	if e.owner != nil {
		panic("list: element already linked on another list")
	}
}
