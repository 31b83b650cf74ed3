package iobuf

import "testing"

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
	if _, err := New(-1); err == nil {
		t.Fatalf("expected error for negative capacity")
	}
}

func TestAdvanceAndPending(t *testing.T) {
	b, err := New(16)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	n := copy(b.Avail(), []byte("hello"))
	b.Advance(n)

	if string(b.Pending()) != "hello" {
		t.Fatalf("expected pending %q, got %q", "hello", b.Pending())
	}
}

func TestConsume(t *testing.T) {
	b, _ := New(16)
	n := copy(b.Avail(), []byte("hello world"))
	b.Advance(n)

	b.Consume(6)
	if string(b.Pending()) != "world" {
		t.Fatalf("expected pending %q, got %q", "world", b.Pending())
	}
}

func TestCompactMovesResidualToFront(t *testing.T) {
	b, _ := New(16)
	n := copy(b.Avail(), []byte("0123456789ABCDEF"))
	b.Advance(n)
	b.Consume(10)

	if len(b.Avail()) != 0 {
		t.Fatalf("expected no headroom before compaction, got %d", len(b.Avail()))
	}
	if b.Full() {
		t.Fatalf("a consumed buffer is not full, only out of headroom")
	}

	b.Compact()
	if string(b.Pending()) != "ABCDEF" {
		t.Fatalf("expected pending %q after compact, got %q", "ABCDEF", b.Pending())
	}
	if len(b.Avail()) != 10 {
		t.Fatalf("expected 10 bytes of headroom after compact, got %d", len(b.Avail()))
	}
}

func TestFull(t *testing.T) {
	b, _ := New(4)
	if b.Full() {
		t.Fatalf("expected empty buffer not full")
	}
	n := copy(b.Avail(), []byte("abcd"))
	b.Advance(n)
	if !b.Full() {
		t.Fatalf("expected buffer full once put-get == capacity")
	}
}

func TestReset(t *testing.T) {
	b, _ := New(8)
	n := copy(b.Avail(), []byte("abcd"))
	b.Advance(n)
	b.Reset()
	if len(b.Pending()) != 0 {
		t.Fatalf("expected empty pending after reset")
	}
	if len(b.Avail()) != 8 {
		t.Fatalf("expected full headroom after reset, got %d", len(b.Avail()))
	}
}
