package generative

import "math/rand"

// Transition is one stored training example for the learned model: the
// token snapshot of the grid before the move and the flat cell index the
// hunted agent was next observed at.
type Transition struct {
	Tokens []int
	Target int
}

// Replay is a fixed-capacity circular buffer of transitions used to
// decorrelate consecutive online updates via mini-batch sampling. Once
// full, the oldest slot is overwritten first.
type Replay struct {
	entries []Transition
	next    int
	full    bool
}

// NewReplay returns a buffer holding at most capacity transitions.
func NewReplay(capacity int) *Replay {
	if capacity < 1 {
		capacity = 1
	}
	return &Replay{entries: make([]Transition, capacity)}
}

// Add stores a transition, copying the token snapshot so callers may
// reuse their slice.
func (r *Replay) Add(tokens []int, target int) {
	snapshot := make([]int, len(tokens))
	copy(snapshot, tokens)
	r.entries[r.next] = Transition{Tokens: snapshot, Target: target}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Len is the number of stored transitions.
func (r *Replay) Len() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Sample draws n transitions uniformly with replacement. Sampling with
// replacement keeps the draw O(n) and is indistinguishable from
// without-replacement at the small batch sizes used here.
func (r *Replay) Sample(rng *rand.Rand, n int) []Transition {
	count := r.Len()
	if count == 0 {
		return nil
	}
	batch := make([]Transition, n)
	for i := 0; i < n; i++ {
		batch[i] = r.entries[rng.Intn(count)]
	}
	return batch
}

// Clear discards all stored transitions; a stale buffer referencing a
// previous episode's dynamics would bias freshly initialized weights.
func (r *Replay) Clear() {
	r.next = 0
	r.full = false
	for i := range r.entries {
		r.entries[i] = Transition{}
	}
}
