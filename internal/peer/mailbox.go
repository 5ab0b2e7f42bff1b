package peer

import "sync"

// mailbox serializes work for one remote peer. Tasks run in submission
// order on a single goroutine, so signaling messages for a given remote
// id can never interleave mutations of that connection's negotiation
// state. Different peers get different mailboxes and progress
// independently.
type mailbox struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

const mailboxDepth = 64

func newMailbox() *mailbox {
	m := &mailbox{
		tasks: make(chan func(), mailboxDepth),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) run() {
	defer close(m.done)
	for task := range m.tasks {
		task()
	}
}

// submit enqueues a task in FIFO order. Returns false once the mailbox
// is closed; late signaling for a torn-down peer is simply discarded.
func (m *mailbox) submit(task func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.tasks <- task:
		return true
	default:
		// A full mailbox means the remote floods signaling; dropping is
		// safer than blocking the dispatcher.
		return false
	}
}

// close stops the mailbox after draining queued tasks.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	close(m.tasks)
	<-m.done
}
