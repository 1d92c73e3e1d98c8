package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthoritySetCollapsesDuplicates(t *testing.T) {
	set := NewAuthoritySet("project:read", "ROLE_ADMIN", "project:read", "", "ROLE_ADMIN")

	assert.Equal(t, []string{"ROLE_ADMIN", "project:read"}, set.Values())
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("project:read"))
	assert.True(t, set.HasRole("ADMIN"))
	assert.False(t, set.Has("project:write"))
	assert.True(t, set.HasAny("x", "project:read"))
}

func TestAuthoritySetValuesIsACopy(t *testing.T) {
	set := NewAuthoritySet("a", "b")
	values := set.Values()
	values[0] = "z"

	assert.True(t, set.Has("a"))
}

func TestAuthoritySetJSON(t *testing.T) {
	data, err := json.Marshal(NewAuthoritySet("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	empty, err := json.Marshal(AuthoritySet{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	var back AuthoritySet
	require.NoError(t, json.Unmarshal([]byte(`["x","x","y"]`), &back))
	assert.Equal(t, []string{"x", "y"}, back.Values())
}

func TestPasswordExpiry(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	assert.False(t, u.PasswordExpired(now))

	exp := now.Add(24 * time.Hour)
	u.PasswordExpiresAt = &exp
	assert.False(t, u.PasswordExpired(now))
	assert.True(t, u.PasswordExpiringSoon(now, 7*24*time.Hour))
	assert.False(t, u.PasswordExpiringSoon(now, time.Hour))
	assert.True(t, u.PasswordExpired(exp))
}

func TestNilPrincipalHasNoAuthority(t *testing.T) {
	var p *Principal
	assert.False(t, p.HasAuthority("ROLE_ADMIN"))
}
