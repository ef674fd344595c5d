package types

// UserState.Status values, per spec.md §3 ("status ∈ {-2,-1,0}"): 0 is the
// only non-negative value and is always active; the two negative values
// distinguish a reversible suspension from a terminal ban, both denied by
// CanAct.
const (
	UserBanned    int8 = -2
	UserSuspended int8 = -1
	UserActive    int8 = 0
)

// UserState is the persistent per-user account record.
type UserState struct {
	User             string          `json:"user" cbor:"user"`
	Status           int8            `json:"status" cbor:"status"` // -2, -1, 0
	SubscriptionTier int8            `json:"subscription_tier" cbor:"subscription_tier"`
	SubscriptionExpiryMs int64       `json:"subscription_expiry_ms" cbor:"subscription_expiry_ms"`
	CreditBalance    int64           `json:"credit_balance" cbor:"credit_balance"`
	CreditExpiryMs   int64           `json:"credit_expiry_ms" cbor:"credit_expiry_ms"`
	Features         map[string]struct{} `json:"features,omitempty" cbor:"features,omitempty"`
	LastAccessMs     int64           `json:"last_access_ms" cbor:"last_access_ms"`
	AgentRequests    uint64          `json:"agent_requests" cbor:"agent_requests"`
	ToolRequests     uint64          `json:"tool_requests" cbor:"tool_requests"`
	CreditConsumed   int64           `json:"credit_consumed" cbor:"credit_consumed"`
	Version          UpdateVersion   `json:"version,omitempty" cbor:"version,omitempty"`
}

// NewUserState creates a zeroed, active user record.
func NewUserState(user string) *UserState {
	return &UserState{
		User:     user,
		Status:   UserActive,
		Features: map[string]struct{}{},
	}
}

// CanAct implements the access predicate of spec.md §3 Invariants.
func (u *UserState) CanAct(nowMs int64) bool {
	if u.Status < 0 {
		return false
	}
	if u.SubscriptionExpiryMs > nowMs {
		return true
	}
	return u.CreditExpiryMs > nowMs && u.CreditBalance > 0
}

// HasFeature reports whether a named feature flag is enabled for the user.
func (u *UserState) HasFeature(name string) bool {
	_, ok := u.Features[name]
	return ok
}
