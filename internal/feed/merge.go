package feed

import (
	"sync"

	"github.com/glabrego/prismwalls/internal/querycache"
)

// Merger fans in snapshots from several controllers onto one channel. Only
// the latest unsent snapshot of each operation is kept, so a slow reader
// skips intermediate states but always ends on the newest one.
type Merger struct {
	mu          sync.Mutex
	pending     map[querycache.Operation]State
	order       []querycache.Operation
	unsubscribe []func()

	wake chan struct{}
	quit chan struct{}
	out  chan State
	once sync.Once
}

func NewMerger() *Merger {
	m := &Merger{
		pending: make(map[querycache.Operation]State),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		out:     make(chan State),
	}
	go m.run()
	return m
}

// Add subscribes to c until Close.
func (m *Merger) Add(c *Controller) {
	unsubscribe := c.Subscribe(m.Push)
	m.mu.Lock()
	m.unsubscribe = append(m.unsubscribe, unsubscribe)
	m.mu.Unlock()
}

// Push replaces the pending snapshot for st's operation. It never blocks.
func (m *Merger) Push(st State) {
	op := st.Query.Operation
	m.mu.Lock()
	if !m.known(op) {
		m.order = append(m.order, op)
	}
	m.pending[op] = st
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Updates is closed by Close.
func (m *Merger) Updates() <-chan State {
	return m.out
}

func (m *Merger) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.mu.Unlock()
		for _, fn := range unsubscribe {
			fn()
		}
		close(m.quit)
	})
}

// known reports whether op is already in the delivery order. Caller holds m.mu.
func (m *Merger) known(op querycache.Operation) bool {
	for _, o := range m.order {
		if o == op {
			return true
		}
	}
	return false
}

func (m *Merger) next() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.order {
		if st, ok := m.pending[op]; ok {
			delete(m.pending, op)
			return st, true
		}
	}
	return State{}, false
}

func (m *Merger) run() {
	defer close(m.out)
	for {
		select {
		case <-m.quit:
			return
		case <-m.wake:
		}
		for {
			st, ok := m.next()
			if !ok {
				break
			}
			select {
			case m.out <- st:
			case <-m.quit:
				return
			}
		}
	}
}
