package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktalk/tasktalk/internal/core"
	"github.com/tasktalk/tasktalk/internal/store"
)

func TestConversationTitleDerivedAndTruncated(t *testing.T) {
	s := newTestStore(t)
	user := newTestUser(t, s, "alice@example.com")
	m := core.NewConversationManager(s)
	ctx := context.Background()

	conv, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Nil(t, conv.Title)

	long := strings.Repeat("remember to water the plants ", 4) // > 50 runes
	_, err = m.AppendMessage(ctx, conv, store.RoleUser, long)
	require.NoError(t, err)

	require.NotNil(t, conv.Title)
	assert.Equal(t, string([]rune(long)[:50])+"...", *conv.Title)

	// A short first message is used verbatim.
	conv2, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)
	_, err = m.AppendMessage(ctx, conv2, store.RoleUser, "short title")
	require.NoError(t, err)
	require.NotNil(t, conv2.Title)
	assert.Equal(t, "short title", *conv2.Title)
}

func TestConversationMessageOrderAndSeq(t *testing.T) {
	s := newTestStore(t)
	user := newTestUser(t, s, "alice@example.com")
	m := core.NewConversationManager(s)
	ctx := context.Background()

	conv, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)

	m1, err := m.AppendMessage(ctx, conv, store.RoleUser, "first")
	require.NoError(t, err)
	m2, err := m.AppendMessage(ctx, conv, store.RoleAssistant, "second")
	require.NoError(t, err)

	// Seq is monotonic even if timestamps collide.
	assert.Equal(t, int64(1), m1.Seq)
	assert.Equal(t, int64(2), m2.Seq)

	_, messages, err := m.Load(ctx, conv.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
}

func TestConversationListOrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	user := newTestUser(t, s, "alice@example.com")
	m := core.NewConversationManager(s)
	ctx := context.Background()

	older, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)
	newer, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)

	_, err = m.AppendMessage(ctx, newer, store.RoleUser, "hi")
	require.NoError(t, err)
	// Activity on the older conversation moves it to the front.
	_, err = m.AppendMessage(ctx, older, store.RoleUser, "hello again")
	require.NoError(t, err)

	convs, err := m.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, older.ID, convs[0].ID)
	assert.Equal(t, newer.ID, convs[1].ID)
}

func TestConversationOwnershipEnforced(t *testing.T) {
	s := newTestStore(t)
	alice := newTestUser(t, s, "alice@example.com")
	mallory := newTestUser(t, s, "mallory@example.com")
	m := core.NewConversationManager(s)
	ctx := context.Background()

	conv, err := m.StartOrContinue(ctx, alice.ID, "")
	require.NoError(t, err)

	_, err = m.StartOrContinue(ctx, mallory.ID, conv.ID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	_, _, err = m.Load(ctx, conv.ID, mallory.ID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func TestConversationDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	user := newTestUser(t, s, "alice@example.com")
	m := core.NewConversationManager(s)
	ctx := context.Background()

	conv, err := m.StartOrContinue(ctx, user.ID, "")
	require.NoError(t, err)
	_, err = m.AppendMessage(ctx, conv, store.RoleUser, "hi")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, conv.ID, user.ID))

	_, _, err = m.Load(ctx, conv.ID, user.ID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	// Deleting again reports not found.
	assert.ErrorIs(t, m.Delete(ctx, conv.ID, user.ID), store.ErrNotFound)
}
