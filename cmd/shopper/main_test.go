package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
)

func TestIssueDevToken_AcceptedByAPIVerifier(t *testing.T) {
	tok, err := issueDevToken("jwt-secret", auth.Identity{UserID: "u1", Email: "Ada@Example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := auth.NewVerifier("jwt-secret", "").Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.False(t, id.Admin)

	_, err = auth.NewVerifier("other-secret", "").Parse(tok)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestIssueDevToken_Admin(t *testing.T) {
	tok, err := issueDevToken("jwt-secret", auth.Identity{UserID: "boss", Admin: true}, time.Hour)
	require.NoError(t, err)

	id, err := auth.NewVerifier("jwt-secret", "").Parse(tok)
	require.NoError(t, err)
	assert.True(t, id.Admin)
}

func TestIssueDevToken_RejectsNonPositiveTTL(t *testing.T) {
	_, err := issueDevToken("jwt-secret", auth.Identity{UserID: "u1"}, 0)
	assert.Error(t, err)
}
