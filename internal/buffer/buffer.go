package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type Item struct {
	Trajectory Trajectory
	EnqueuedAt time.Time
}

// Policy decides which end of the queue Dequeue serves.
type Policy string

const (
	PolicyFIFO      Policy = "fifo"
	PolicyFreshness Policy = "freshness"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFIFO, PolicyFreshness:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

type ReplayBuffer struct {
	mu       sync.Mutex
	items    []Item
	capacity int
	policy   Policy
}

var (
	ErrBufferFull    = errors.New("buffer is full")
	ErrBufferEmpty   = errors.New("buffer is empty")
	ErrInvalidPolicy = errors.New("policy must be 'fifo' or 'freshness'")
)

func NewReplayBuffer(capacity int, policy string) (*ReplayBuffer, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	p, err := ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	return &ReplayBuffer{
		items:    make([]Item, 0, capacity),
		capacity: capacity,
		policy:   p,
	}, nil
}

func (rb *ReplayBuffer) Enqueue(item Item) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.items) >= rb.capacity {
		return ErrBufferFull
	}
	rb.items = append(rb.items, item)
	return nil
}

func (rb *ReplayBuffer) Dequeue() (Item, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.dequeueLocked()
}

// DequeueBatch removes up to n items under one lock.
func (rb *ReplayBuffer) DequeueBatch(n int) []Item {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	items := make([]Item, 0, min(n, len(rb.items)))
	for len(items) < n {
		item, err := rb.dequeueLocked()
		if err != nil {
			break
		}
		items = append(items, item)
	}
	return items
}

func (rb *ReplayBuffer) dequeueLocked() (Item, error) {
	if len(rb.items) == 0 {
		return Item{}, ErrBufferEmpty
	}

	switch rb.policy {
	case PolicyFIFO:
		item := rb.items[0]
		rb.items = rb.items[1:]
		return item, nil
	case PolicyFreshness:
		item := rb.items[len(rb.items)-1]
		rb.items = rb.items[:len(rb.items)-1]
		return item, nil
	default:
		return Item{}, errors.New("unknown policy")
	}
}

func (rb *ReplayBuffer) Capacity() int {
	return rb.capacity
}

func (rb *ReplayBuffer) Policy() Policy {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.policy
}

func (rb *ReplayBuffer) SetPolicy(policy string) error {
	p, err := ParsePolicy(policy)
	if err != nil {
		return err
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.policy = p
	return nil
}

func (rb *ReplayBuffer) Size() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return len(rb.items)
}
