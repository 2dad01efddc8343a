package types

import "time"

// Record is everything stored for one subscriber. Version is owned by the
// store and changes on every successful CompareAndSwap.
type Record struct {
	SubscriberID int64         `json:"subscriber_id"`
	Name         string        `json:"name,omitempty"`
	Handle       string        `json:"handle,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Order        *Order        `json:"order,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Version      int64         `json:"-"`
}

type Order struct {
	ID        string      `json:"id"`
	Plan      string      `json:"plan"`
	Status    OrderStatus `json:"status"`
	ProofRef  string      `json:"proof_ref,omitempty"`
	ProofKind ProofKind   `json:"proof_kind,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`
}

// Subscription is the granted entitlement. A nil ExpiresAt means lifetime.
type Subscription struct {
	Plan         string     `json:"plan"`
	ActivatedAt  time.Time  `json:"activated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ReminderSent bool       `json:"reminder_sent,omitempty"`
}

func (s *Subscription) Lifetime() bool {
	return s != nil && s.ExpiresAt == nil
}

// PendingOrder returns the order if it is still waiting for proof or review.
func (r *Record) PendingOrder() *Order {
	if r == nil || r.Order == nil || r.Order.Status.Terminal() {
		return nil
	}
	return r.Order
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Order != nil {
		o := *r.Order
		if r.Order.DecidedAt != nil {
			t := *r.Order.DecidedAt
			o.DecidedAt = &t
		}
		c.Order = &o
	}
	if r.Subscription != nil {
		s := *r.Subscription
		if r.Subscription.ExpiresAt != nil {
			t := *r.Subscription.ExpiresAt
			s.ExpiresAt = &t
		}
		c.Subscription = &s
	}
	return &c
}

type Action struct {
	Kind         ActionKind
	Text         string
	CallbackData string
}

type Attachment struct {
	FileID string
	Kind   ProofKind
}

// Notification is one outbound message. Actions render as an inline keyboard.
type Notification struct {
	ChatID     int64
	Text       string
	Actions    []Action
	Attachment *Attachment
}
