// bus/bus.go
package bus

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a path of comparable tokens (strings and small ints in practice).
// The string tokens "+" and "#" act as single-level and multi-level wildcards
// in subscription patterns.
type Topic []any

const (
	tokPlus = "+"
	tokHash = "#"
)

// T builds a topic, panicking if a token is not comparable (and therefore
// could never be routed).
func T(tokens ...any) Topic {
	probe := make(map[any]struct{}, len(tokens))
	for _, tok := range tokens {
		probe[tok] = struct{}{} // panics on unhashable tokens
	}
	return Topic(tokens)
}

// Equal reports exact token-wise equality (no wildcard interpretation).
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Pattern() Topic           { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// push delivers without blocking; the oldest queued message is dropped when
// the subscriber is behind.
func (s *Subscription) push(m *Message) {
	select {
	case s.ch <- m:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if n.children == nil {
		if !create {
			return nil
		}
		n.children = make(map[any]*node)
	}
	c, ok := n.children[tok]
	if !ok {
		if !create {
			return nil
		}
		c = &node{}
		n.children[tok] = c
	}
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewBus creates a bus whose subscriptions buffer queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish routes a message to every matching subscription. Retained messages
// are stored at their exact topic; a retained nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match(b.root, msg.Topic, 0, func(s *Subscription) { s.push(msg) })

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

// match walks the trie delivering along exact, "+" and "#" branches.
func (b *Bus) match(n *node, topic Topic, i int, emit func(*Subscription)) {
	// "#" matches the remainder, including zero levels.
	if h := n.child(tokHash, false); h != nil {
		for _, s := range h.subs {
			emit(s)
		}
	}
	if i == len(topic) {
		for _, s := range n.subs {
			emit(s)
		}
		return
	}
	if c := n.child(topic[i], false); c != nil {
		b.match(c, topic, i+1, emit)
	}
	if p := n.child(tokPlus, false); p != nil {
		b.match(p, topic, i+1, emit)
	}
}

// retainedFor collects stored retained messages matching a pattern.
func (b *Bus) retainedFor(n *node, pat Topic, i int, emit func(*Message)) {
	if i == len(pat) {
		if n.retained != nil {
			emit(n.retained)
		}
		return
	}
	switch pat[i] {
	case tokHash:
		b.retainedSubtree(n, emit)
	case tokPlus:
		for _, c := range n.children {
			b.retainedFor(c, pat, i+1, emit)
		}
	default:
		if c := n.child(pat[i], false); c != nil {
			b.retainedFor(c, pat, i+1, emit)
		}
	}
}

func (b *Bus) retainedSubtree(n *node, emit func(*Message)) {
	if n.retained != nil {
		emit(n.retained)
	}
	for _, c := range n.children {
		b.retainedSubtree(c, emit)
	}
}

func (b *Bus) subscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.pattern {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	b.retainedFor(b.root, sub.pattern, 0, func(m *Message) { sub.push(m) })
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(sub.pattern))
	for _, tok := range sub.pattern {
		c := n.child(tok, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// Prune empty branches.
	for i := len(sub.pattern) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[sub.pattern[i]]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, sub.pattern[i])
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connections
// -----------------------------------------------------------------------------

type Connection struct {
	bus *Bus
	id  string

	mu     sync.Mutex
	subs   []*Subscription
	seqNum int
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(pattern Topic) *Subscription {
	sub := &Subscription{
		pattern: pattern,
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.bus.subscribe(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect tears down every subscription owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		c.bus.unsubscribe(sub)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// Reply answers a request on its ReplyTo topic. No-op if the request did not
// ask for a reply.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.bus.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}

// Request publishes msg with a fresh ReplyTo topic and returns the
// subscription the reply will arrive on. The caller must Unsubscribe it.
func (c *Connection) Request(msg *Message) *Subscription {
	c.mu.Lock()
	c.seqNum++
	seq := c.seqNum
	c.mu.Unlock()

	msg.ReplyTo = Topic{"$reply", c.id, seq}
	sub := c.Subscribe(msg.ReplyTo)
	c.bus.Publish(msg)
	return sub
}

// RequestWait performs a request and blocks for the reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
