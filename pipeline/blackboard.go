package pipeline

// Channel identifies one named scratch array on the blackboard.
type Channel int

// Blackboard is per-tick scratch storage shared between modules. Each
// channel is a dense array indexed by particle slot, zeroed at tick start.
type Blackboard struct {
	names []string
	index map[string]Channel
	data  [][]float64
	size  int
}

// NewBlackboard returns an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{index: make(map[string]Channel)}
}

// Declare returns the channel for name, creating it on first use.
func (b *Blackboard) Declare(name string) Channel {
	if ch, ok := b.index[name]; ok {
		return ch
	}
	ch := Channel(len(b.data))
	b.index[name] = ch
	b.names = append(b.names, name)
	b.data = append(b.data, make([]float64, b.size))
	return ch
}

// Lookup returns the channel for name if it was declared.
func (b *Blackboard) Lookup(name string) (Channel, bool) {
	ch, ok := b.index[name]
	return ch, ok
}

// Resize makes every channel hold n slots. Existing storage is reused.
func (b *Blackboard) Resize(n int) {
	if n < 0 {
		n = 0
	}
	b.size = n
	for i, col := range b.data {
		if cap(col) >= n {
			b.data[i] = col[:n]
		} else {
			b.data[i] = make([]float64, n)
		}
	}
}

// Reset zeroes every channel.
func (b *Blackboard) Reset() {
	for _, col := range b.data {
		clear(col)
	}
}

// Get reads slot i of ch.
func (b *Blackboard) Get(ch Channel, i int) float64 { return b.data[ch][i] }

// Set writes slot i of ch.
func (b *Blackboard) Set(ch Channel, i int, v float64) { b.data[ch][i] = v }

// Add accumulates into slot i of ch.
func (b *Blackboard) Add(ch Channel, i int, v float64) { b.data[ch][i] += v }

// Len returns the slot count per channel.
func (b *Blackboard) Len() int { return b.size }

// Channels returns the declared channel names in declaration order.
func (b *Blackboard) Channels() []string { return b.names }
