package memory

import (
	"context"
	"sync"
)

// RosterNotifier fans roster versions out to in-process subscribers.
type RosterNotifier struct {
	mu          sync.Mutex
	subscribers map[chan string]struct{}
}

func NewRosterNotifier() *RosterNotifier {
	return &RosterNotifier{subscribers: make(map[chan string]struct{})}
}

func (n *RosterNotifier) Publish(_ context.Context, version string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- version:
		default:
			// only the newest version matters
			select {
			case <-ch:
			default:
			}
			ch <- version
		}
	}
	return nil
}

func (n *RosterNotifier) Subscribe(_ context.Context) (<-chan string, func(), error) {
	ch := make(chan string, 1)

	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subscribers[ch]; ok {
			delete(n.subscribers, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}
