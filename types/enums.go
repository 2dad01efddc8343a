package types

type OrderStatus string

const (
	StatusPendingProof  OrderStatus = "pending_proof"
	StatusPendingReview OrderStatus = "pending_review"
	StatusApproved      OrderStatus = "approved"
	StatusRejected      OrderStatus = "rejected"
)

// Terminal reports whether no further transition is allowed for the order.
func (s OrderStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type ProofKind string

const (
	ProofPhoto    ProofKind = "photo"
	ProofDocument ProofKind = "document"
)

type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)
