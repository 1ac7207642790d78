package game

import "time"

// Mood is the cosmetic state of a customer.
type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodHappy   Mood = "happy"
	MoodAngry   Mood = "angry"
)

// Customer waits in a slot for one catalog item.
type Customer struct {
	ID        int64
	Request   string
	Slot      int
	Mood      Mood
	Remaining time.Duration
	MaxTime   time.Duration

	// Expired customers no longer count down; they wait for their delayed removal.
	Expired bool
	// Served customers were matched and wait for their delayed removal. A
	// served customer cannot be served again.
	Served bool
}

// Progress is the share of patience left, 1 when fresh and 0 when expired.
func (c *Customer) Progress() float64 {
	if c.MaxTime <= 0 || c.Remaining <= 0 {
		return 0
	}
	return float64(c.Remaining) / float64(c.MaxTime)
}

// Waiting reports whether the customer still counts down.
func (c *Customer) Waiting() bool {
	return !c.Expired && !c.Served
}

// SpawnedItem is a draggable item on the counter. X and Y are normalized
// display coordinates and carry no game meaning.
type SpawnedItem struct {
	ID        int64
	Name      string
	Remaining time.Duration
	X, Y      float64
}

// Matches reports whether item satisfies the customer's request.
func (it *SpawnedItem) Matches(c *Customer) bool {
	return it.Name == c.Request
}
