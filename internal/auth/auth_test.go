package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	pid, sid := uuid.New(), uuid.New()

	token, err := CreateAdmissionToken(secret, pid, sid, "ada", time.Minute)
	require.NoError(t, err)

	claims, err := ParseAdmissionToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, pid, claims.ParticipantID)
	assert.Equal(t, sid, claims.SessionID)
	assert.Equal(t, "ada", claims.Name)
}

func TestAdmissionTokenWrongSecret(t *testing.T) {
	token, err := CreateAdmissionToken([]byte("right"), uuid.New(), uuid.New(), "ada", time.Minute)
	require.NoError(t, err)

	_, err = ParseAdmissionToken([]byte("wrong"), token)
	assert.Error(t, err)
}

func TestAdmissionTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := CreateAdmissionToken(secret, uuid.New(), uuid.New(), "ada", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAdmissionToken(secret, token)
	assert.Error(t, err)
}

func TestAdmissionTokenGarbage(t *testing.T) {
	_, err := ParseAdmissionToken([]byte("secret"), "not-a-token")
	assert.Error(t, err)
}
