package game

// Slots allocates customer positions. Each index holds at most one customer
// and becomes reusable only after Release.
type Slots struct {
	taken []bool
}

func NewSlots(n int) *Slots {
	if n < 0 {
		n = 0
	}
	return &Slots{taken: make([]bool, n)}
}

// Acquire returns the lowest free slot.
func (s *Slots) Acquire() (int, bool) {
	for i, t := range s.taken {
		if !t {
			s.taken[i] = true
			return i, true
		}
	}
	return -1, false
}

// Release frees slot i. Out of range or already free slots are ignored.
func (s *Slots) Release(i int) {
	if i < 0 || i >= len(s.taken) {
		return
	}
	s.taken[i] = false
}

// Free counts the unoccupied slots.
func (s *Slots) Free() int {
	n := 0
	for _, t := range s.taken {
		if !t {
			n++
		}
	}
	return n
}

// Reset frees every slot.
func (s *Slots) Reset() {
	for i := range s.taken {
		s.taken[i] = false
	}
}
