package game

// Bitset is a fixed-size bit vector over board cells. The zero value is
// unusable; size it with NewBitset(width*height).
type Bitset []uint64

func NewBitset(n int) Bitset {
	return make(Bitset, (n+63)/64)
}

func (b Bitset) Get(i int) bool { return b[i>>6]&(1<<uint(i&63)) != 0 }
func (b Bitset) Set(i int)      { b[i>>6] |= 1 << uint(i&63) }
func (b Bitset) Clear(i int)    { b[i>>6] &^= 1 << uint(i&63) }

func (b Bitset) Clone() Bitset {
	if b == nil {
		return nil
	}
	out := make(Bitset, len(b))
	copy(out, b)
	return out
}
