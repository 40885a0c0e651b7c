package auth

import (
	"context"
	"testing"

	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
)

func initTestAuth(t *testing.T) storage.StorageInterface {
	t.Helper()
	store := storage.NewMemoryStorage()
	InitAuth(store, "test-signing-key")
	return store
}

func TestSignUpAndSignIn(t *testing.T) {
	initTestAuth(t)

	token, refresh, err := SignUp(context.Background(), "casey", "casey@example.com", "Test1234", "America/New_York")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, refresh)

	token, refresh, err = SignIn(context.Background(), "casey", "Test1234")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, refresh)

	_, _, err = SignIn(context.Background(), "casey", "wrong-password")
	assert.Error(t, err)
}

func TestSignUpValidation(t *testing.T) {
	initTestAuth(t)

	_, _, err := SignUp(context.Background(), "c", "casey@example.com", "Test1234", "")
	assert.Error(t, err, "Should reject a one-character username")

	_, _, err = SignUp(context.Background(), "casey", "not-an-email", "Test1234", "")
	assert.Error(t, err, "Should reject an invalid email")

	_, _, err = SignUp(context.Background(), "casey", "casey@example.com", "short", "")
	assert.Error(t, err, "Should reject a weak password")

	_, _, err = SignUp(context.Background(), "casey", "casey@example.com", "Test1234", "Neverland/Nowhere")
	assert.Error(t, err, "Should reject an unknown timezone")
}

func TestSignUpDuplicates(t *testing.T) {
	initTestAuth(t)

	_, _, err := SignUp(context.Background(), "casey", "casey@example.com", "Test1234", "")
	assert.NoError(t, err)

	_, _, err = SignUp(context.Background(), "casey", "other@example.com", "Test1234", "")
	assert.Error(t, err, "Should reject a taken username")

	_, _, err = SignUp(context.Background(), "someone", "casey@example.com", "Test1234", "")
	assert.Error(t, err, "Should reject a taken email")
}

func TestRefreshRotatesTokens(t *testing.T) {
	initTestAuth(t)

	_, refresh, err := SignUp(context.Background(), "casey", "casey@example.com", "Test1234", "")
	assert.NoError(t, err)

	token2, refresh2, err := Refresh(context.Background(), refresh)
	assert.NoError(t, err)
	assert.NotEmpty(t, token2)
	assert.NotEmpty(t, refresh2)

	// The old refresh token was revoked by the rotation.
	_, _, err = Refresh(context.Background(), refresh)
	assert.Error(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	initTestAuth(t)

	_, _, err := Refresh(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}
