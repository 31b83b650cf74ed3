package header

import "testing"

func TestSetOverwrites(t *testing.T) {
	tb := New()
	if err := tb.Set("Host", "example.com"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := tb.Set("Host", "other.com"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if tb.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tb.Len())
	}
	v, ok := tb.Find("host")
	if !ok || v != "other.com" {
		t.Fatalf("expected other.com, got %q (ok=%v)", v, ok)
	}
}

func TestSetPreservesOriginalCasing(t *testing.T) {
	tb := New()
	tb.Set("Content-Type", "text/plain")
	tb.Set("CONTENT-TYPE", "application/json")

	entries := tb.Iter()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "Content-Type" {
		t.Fatalf("expected original casing Content-Type, got %q", entries[0].Name)
	}
	if entries[0].Value != "application/json" {
		t.Fatalf("expected updated value, got %q", entries[0].Value)
	}
}

func TestAppendFolds(t *testing.T) {
	tb := New()
	tb.Append("Connection", "keep-alive")
	tb.Append("connection", "upgrade")

	v, ok := tb.Find("CONNECTION")
	if !ok {
		t.Fatalf("expected entry to be found")
	}
	if v != "keep-alive, upgrade" {
		t.Fatalf("expected folded value, got %q", v)
	}
	if tb.Len() != 1 {
		t.Fatalf("expected single folded entry, got %d", tb.Len())
	}
}

func TestFindCaseInsensitive(t *testing.T) {
	tb := New()
	tb.Set("Host", "example.com")

	for _, key := range []string{"host", "HOST", "HoSt"} {
		if v, ok := tb.Find(key); !ok || v != "example.com" {
			t.Fatalf("Find(%q) = %q, %v; want example.com, true", key, v, ok)
		}
	}
}

func TestIterPreservesInsertionOrder(t *testing.T) {
	tb := New()
	tb.Set("Host", "example.com")
	tb.Set("Accept", "*/*")
	tb.Set("User-Agent", "httpcore")

	entries := tb.Iter()
	want := []string{"Host", "Accept", "User-Agent"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("entry %d: expected %q, got %q", i, name, entries[i].Name)
		}
	}
}

func TestClear(t *testing.T) {
	tb := New()
	tb.Set("Host", "example.com")
	tb.Clear()
	if tb.Len() != 0 {
		t.Fatalf("expected empty table after Clear, got %d entries", tb.Len())
	}
	if _, ok := tb.Find("Host"); ok {
		t.Fatalf("expected Find to miss after Clear")
	}
}

func TestSetRejectsInvalidName(t *testing.T) {
	tb := New()
	if err := tb.Set("Bad Name", "v"); err == nil {
		t.Fatalf("expected error for header name containing a space")
	}
	if tb.Len() != 0 {
		t.Fatalf("expected table unchanged after rejected Set, got %d entries", tb.Len())
	}
}

func TestAppendRejectsInvalidValue(t *testing.T) {
	tb := New()
	if err := tb.Append("X-Test", "bad\nvalue"); err == nil {
		t.Fatalf("expected error for header value containing a control character")
	}
}

func TestFindMissing(t *testing.T) {
	tb := New()
	if _, ok := tb.Find("Nonexistent"); ok {
		t.Fatalf("expected Find to miss on an empty table")
	}
}
