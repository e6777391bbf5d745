package client

import "testing"

func TestHistoryAddAndLast(t *testing.T) {
	h := NewHistory(10)
	h.Add("north")
	h.Add("south")
	h.Add("")      // ignored
	h.Add("south") // duplicate ignored
	h.Add("east")
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	got := h.Last(2)
	if len(got) != 2 || got[0] != "south" || got[1] != "east" {
		t.Errorf("last = %v", got)
	}
	if all := h.Last(100); len(all) != 3 || all[0] != "north" {
		t.Errorf("all = %v", all)
	}
}

func TestHistoryCapacity(t *testing.T) {
	h := NewHistory(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		h.Add(line)
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	got := h.Last(3)
	if got[0] != "c" || got[2] != "e" {
		t.Errorf("last = %v", got)
	}
}

func TestHistoryCursor(t *testing.T) {
	h := NewHistory(10)
	h.Add("one")
	h.Add("two")
	h.Add("three")

	if line, ok := h.Prev(); !ok || line != "three" {
		t.Errorf("prev = %q, %v", line, ok)
	}
	if line, ok := h.Prev(); !ok || line != "two" {
		t.Errorf("prev = %q, %v", line, ok)
	}
	if line, ok := h.Prev(); !ok || line != "one" {
		t.Errorf("prev = %q, %v", line, ok)
	}
	// At the oldest line the cursor stays put.
	if _, ok := h.Prev(); ok {
		t.Error("prev past oldest")
	}
	if line, ok := h.Next(); !ok || line != "two" {
		t.Errorf("next = %q, %v", line, ok)
	}
	if line, ok := h.Next(); !ok || line != "three" {
		t.Errorf("next = %q, %v", line, ok)
	}
	// Past the newest the caller restores its edit buffer.
	if _, ok := h.Next(); ok {
		t.Error("next past newest")
	}

	// Adding resets the cursor to the end.
	h.Prev()
	h.Add("four")
	if line, ok := h.Prev(); !ok || line != "four" {
		t.Errorf("prev after add = %q, %v", line, ok)
	}
}
