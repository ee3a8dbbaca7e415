package list

import "testing"

func TestAppendPrependOrder(t *testing.T) {
	var l List[int]
	a := &Elem[int]{Value: 1}
	b := &Elem[int]{Value: 2}
	c := &Elem[int]{Value: 3}

	l.Append(a)
	l.Append(b)
	l.Prepend(c)

	got := collect(&l)
	want := []int{3, 1, 2}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
}

func TestRemoveMiddle(t *testing.T) {
	var l List[int]
	a := &Elem[int]{Value: 1}
	b := &Elem[int]{Value: 2}
	c := &Elem[int]{Value: 3}
	l.Append(a)
	l.Append(b)
	l.Append(c)

	l.Remove(b)
	if b.Linked() {
		t.Fatal("b should be detached")
	}
	got := collect(&l)
	want := []int{1, 3}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	l.Remove(a)
	l.Remove(c)
	if !l.Empty() {
		t.Fatalf("list should be empty, len=%d", l.Len())
	}
	if l.Head() != nil || l.Tail() != nil {
		t.Fatal("head/tail should be nil once empty")
	}
}

func TestAppendPanicsOnAlreadyLinked(t *testing.T) {
	var l1, l2 List[int]
	a := &Elem[int]{Value: 1}
	l1.Append(a)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inserting an already-linked element")
		}
	}()
	l2.Append(a)
}

func TestPopHead(t *testing.T) {
	var l List[int]
	a := &Elem[int]{Value: 1}
	b := &Elem[int]{Value: 2}
	l.Append(a)
	l.Append(b)

	got := l.PopHead()
	if got != a || got.Value != 1 {
		t.Fatalf("PopHead returned %v, want a", got)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
	if l.PopHead() != b {
		t.Fatal("second PopHead should return b")
	}
	if l.PopHead() != nil {
		t.Fatal("PopHead on empty list should return nil")
	}
}

func collect(l *List[int]) []int {
	var out []int
	l.Each(func(e *Elem[int]) bool {
		out = append(out, e.Value)
		return true
	})
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
