package types

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateMemo_NeverExceedsAndValidUTF8(t *testing.T) {
	cases := []string{
		"",
		"short",
		strings.Repeat("a", 100),
		strings.Repeat("日", 20), // 3-byte scalar, forces trimming mid-boundary
		strings.Repeat("🚀", 20), // 4-byte scalar
	}
	for _, s := range cases {
		got := TruncateMemo(s)
		assert.LessOrEqual(t, len(got), 32)
		assert.True(t, utf8.ValidString(got))
	}
}

func TestPrincipal_RoundTrip(t *testing.T) {
	p := Principal{1, 2, 3, 4, 5}
	s := p.String()
	back, err := ParsePrincipal(s)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestPrincipal_Anonymous(t *testing.T) {
	assert.True(t, Anonymous.IsAnonymous())
	assert.Equal(t, "anonymous", Anonymous.String())
}

func TestXid_TimeSortable(t *testing.T) {
	a := NewXid(1000, [8]byte{0})
	b := NewXid(2000, [8]byte{0})
	assert.Less(t, a.String(), b.String())
	assert.Equal(t, uint32(1000), a.Time())
}

func TestThreadMeta_Permissions(t *testing.T) {
	owner := Principal{9}
	other := Principal{8}
	th := NewThreadMeta(NewXid(1, [8]byte{}), owner, 10, 1)

	assert.True(t, th.HasPermission(owner, PermControl))
	assert.True(t, th.HasPermission(owner, PermManage))
	assert.True(t, th.HasPermission(owner, PermRead))
	assert.False(t, th.HasPermission(other, PermRead)) // private, not a participant

	th.Participants[other.String()] = "member"
	assert.True(t, th.HasPermission(other, PermRead))
	assert.True(t, th.HasPermission(other, PermWrite))
	assert.False(t, th.HasPermission(other, PermManage))

	th.Visibility = VisibilityPublic
	assert.True(t, th.HasPermission(Anonymous, PermRead))
	assert.False(t, th.HasPermission(Anonymous, PermWrite))
}

func TestUserState_CanAct(t *testing.T) {
	u := NewUserState("alice")
	assert.False(t, u.CanAct(1000)) // no subscription, no credit

	u.SubscriptionExpiryMs = 5000
	assert.True(t, u.CanAct(1000))

	u2 := NewUserState("bob")
	u2.CreditExpiryMs = 5000
	u2.CreditBalance = 10
	assert.True(t, u2.CanAct(1000))

	u2.Status = -1
	assert.False(t, u2.CanAct(1000))
}
