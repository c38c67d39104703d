package chash

// Next is the Hash one greater than h,
// treating all 76 bytes as a big-endian integer.
// It is not a content hash of anything;
// it exists to build fence posts for range queries.
// Max.Next() wraps to Zero.
func (h Hash) Next() Hash {
	for i := Size - 1; i >= 0; i-- {
		h[i]++
		if h[i] != 0 {
			break
		}
	}
	return h
}

// Previous is the Hash one less than h.
// Zero.Previous() wraps to Max.
func (h Hash) Previous() Hash {
	for i := Size - 1; i >= 0; i-- {
		h[i]--
		if h[i] != 0xff {
			break
		}
	}
	return h
}

// Add adds delta to h, modulo 2^(8*Size).
func (h Hash) Add(delta int64) Hash {
	if delta < 0 {
		return h.sub(uint64(-delta))
	}
	return h.add(uint64(delta))
}

func (h Hash) add(d uint64) Hash {
	var carry uint64
	for i := Size - 1; i >= 0 && (d > 0 || carry > 0); i-- {
		sum := uint64(h[i]) + d&0xff + carry
		h[i] = byte(sum)
		carry = sum >> 8
		d >>= 8
	}
	return h
}

func (h Hash) sub(d uint64) Hash {
	var borrow uint64
	for i := Size - 1; i >= 0 && (d > 0 || borrow > 0); i-- {
		sub := d&0xff + borrow
		if uint64(h[i]) >= sub {
			h[i] -= byte(sub)
			borrow = 0
		} else {
			h[i] = byte(uint64(h[i]) + 256 - sub)
			borrow = 1
		}
		d >>= 8
	}
	return h
}
