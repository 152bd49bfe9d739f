package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/scope"
)

func TestResolve_AppSpecific(t *testing.T) {
	key, err := scope.Resolve("user-1", "chat", scope.AppSpecific)
	require.NoError(t, err)

	assert.Equal(t, "chat", key.SemanticKey)
	assert.Equal(t, "user-1::chat", key.GraphKey)
	assert.False(t, key.Degraded)
	assert.Zero(t, key.Window)

	uid, app := scope.ParseGraphKey(key.GraphKey)
	assert.Equal(t, "user-1", uid)
	assert.Equal(t, "chat", app)
}

func TestResolve_AllMemories(t *testing.T) {
	key, err := scope.Resolve("user-1", "chat", scope.AllMemories)
	require.NoError(t, err)

	assert.Empty(t, key.SemanticKey, "empty semantic key means full-account search")
	assert.Equal(t, "user-1", key.GraphKey)
	assert.False(t, key.Degraded)
}

func TestResolve_TimeBounded(t *testing.T) {
	key, err := scope.Resolve("user-1", "", scope.TimeBounded)
	require.NoError(t, err)

	assert.Equal(t, "user-1", key.GraphKey)
	assert.Equal(t, scope.DefaultWindow, key.Window)
}

func TestResolve_Deterministic(t *testing.T) {
	a, err := scope.Resolve("user-1", "chat", scope.AppSpecific)
	require.NoError(t, err)
	b, err := scope.Resolve("user-1", "chat", scope.AppSpecific)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestResolve_UnknownScopeFailsOpen(t *testing.T) {
	open, err := scope.Resolve("user-1", "chat", scope.AllMemories)
	require.NoError(t, err)

	for _, granted := range []string{"", "rw", "delete_everything"} {
		key, err := scope.Resolve("user-1", "chat", granted)
		require.NoError(t, err)

		assert.True(t, key.Degraded, "scope %q should be flagged degraded", granted)
		assert.Equal(t, open.SemanticKey, key.SemanticKey)
		assert.Equal(t, open.GraphKey, key.GraphKey)
	}
}

func TestResolve_MalformedIdentity(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		appID  string
		scope  string
	}{
		{"empty user", "", "chat", scope.AllMemories},
		{"blank user", "   ", "chat", scope.AllMemories},
		{"separator in user", "user::1", "chat", scope.AllMemories},
		{"separator in app", "user-1", "ch::at", scope.AppSpecific},
		{"app_specific without app", "user-1", "", scope.AppSpecific},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scope.Resolve(tc.userID, tc.appID, tc.scope)
			require.ErrorIs(t, err, core.ErrInvalidScopeInput)
		})
	}
}
