package game

import "testing"

func TestBitset_SetGetClear(t *testing.T) {
	b := NewBitset(130)

	for _, i := range []int{0, 1, 63, 64, 65, 127, 129} {
		if b.Get(i) {
			t.Fatalf("fresh bitset has bit %d set", i)
		}
		b.Set(i)
		if !b.Get(i) {
			t.Fatalf("bit %d not set", i)
		}
	}
	if b.Get(2) || b.Get(66) || b.Get(128) {
		t.Fatalf("untouched bits set")
	}

	b.Clear(64)
	if b.Get(64) {
		t.Fatalf("bit 64 not cleared")
	}
	if !b.Get(63) || !b.Get(65) {
		t.Fatalf("clearing 64 disturbed its neighbors")
	}
}

func TestBitset_CloneIsIndependent(t *testing.T) {
	b := NewBitset(70)
	b.Set(5)
	b.Set(69)

	c := b.Clone()
	c.Clear(5)
	c.Set(6)

	if !b.Get(5) || b.Get(6) {
		t.Fatalf("clone mutation leaked into original")
	}
	if !c.Get(69) {
		t.Fatalf("clone lost bit 69")
	}
}
