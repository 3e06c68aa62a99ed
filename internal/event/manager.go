package event

import (
	"sync"

	"go.uber.org/zap"
)

// Manager fans committed events out to listeners. Each listener has its own
// backlog and goroutine so it sees events in emission order. Emitting never
// blocks: a stalled listener only grows its own backlog.
type Manager struct {
	mu        sync.RWMutex
	listeners []*Listener
	queueSize int
	wg        sync.WaitGroup
	closed    bool
}

type Listener struct {
	eventType Type
	warnAt    int

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool
}

// AllEvents subscribes a listener to every event type.
const AllEvents Type = "*"

// NewManager creates a manager whose listeners log a warning each time their
// backlog grows by another queueSize events.
func NewManager(queueSize int) *Manager {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Manager{listeners: make([]*Listener, 0), queueSize: queueSize}
}

func (m *Manager) AddEventListener(eventType Type, callback func(e Event)) {
	zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")

	listener := &Listener{
		eventType: eventType,
		warnAt:    m.queueSize,
		pending:   make([]Event, 0),
	}
	listener.cond = sync.NewCond(&listener.mu)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		zap.L().With(zap.String("type", string(eventType))).Warn("EventManager: AddListener after close")
		return
	}
	m.listeners = append(m.listeners, listener)
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		listener.run(callback)
	}()
}

func (m *Manager) EmitEvent(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		zap.L().With(zap.String("type", string(e.Type))).Warn("EventManager: Emit after close")
		return
	}
	if len(m.listeners) == 0 {
		zap.L().Debug("No event listeners available")
	}
	for _, listener := range m.listeners {
		if listener.eventType == e.Type || listener.eventType == AllEvents {
			zap.L().With(zap.String("type", string(e.Type)), zap.String("txId", e.TxID)).Debug("EventManager: Emitting event")
			listener.push(e)
		}
	}
}

// Close stops accepting events and waits for listeners to drain their backlogs.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, listener := range m.listeners {
		listener.close()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (l *Listener) push(e Event) {
	l.mu.Lock()
	l.pending = append(l.pending, e)
	backlog := len(l.pending)
	l.mu.Unlock()
	l.cond.Signal()

	if backlog%l.warnAt == 0 {
		zap.L().With(zap.String("type", string(l.eventType)), zap.Int("backlog", backlog)).Warn("EventManager: Listener is falling behind")
	}
}

func (l *Listener) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Signal()
}

func (l *Listener) run(callback func(e Event)) {
	for {
		l.mu.Lock()
		for len(l.pending) == 0 && !l.closed {
			l.cond.Wait()
		}
		batch := l.pending
		l.pending = make([]Event, 0)
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			callback(e)
		}
	}
}
