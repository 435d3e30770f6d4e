package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetUserByUsername(t *testing.T) {
	id := createTestUser(t, "lookup_user")

	user, err := testStore.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)

	found, err := testStore.GetUserByUsername(context.Background(), user.Username)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, id, found.ID)
	require.NotEmpty(t, found.PasswordHash)

	missing, err := testStore.GetUserByUsername(context.Background(), "no_such_user")
	require.NoError(t, err)
	require.Nil(t, missing)
}
