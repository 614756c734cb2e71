package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
)

func TestVerifier(t *testing.T) {
	userID := uuid.New()
	now := time.Now()

	verifier, err := auth.NewVerifier("secret", "authenticated", "")
	require.NoError(t, err)

	otherAudience, err := auth.NewVerifier("secret", "service_role", "")
	require.NoError(t, err)

	otherSecret, err := auth.NewVerifier("other", "authenticated", "")
	require.NoError(t, err)

	type testCase struct {
		name    string
		token   func(t *testing.T) string
		wantErr bool
	}

	mint := func(v *auth.Verifier, id uuid.UUID, issued time.Time, ttl time.Duration) func(t *testing.T) string {
		return func(t *testing.T) string {
			token, err := v.Mint(id, issued, ttl)
			require.NoError(t, err)

			return token
		}
	}

	tests := []testCase{
		{name: "Valid", token: mint(verifier, userID, now, time.Hour)},
		{name: "Expired", token: mint(verifier, userID, now.Add(-2*time.Hour), time.Hour), wantErr: true},
		{name: "WrongAudience", token: mint(otherAudience, userID, now, time.Hour), wantErr: true},
		{name: "WrongSecret", token: mint(otherSecret, userID, now, time.Hour), wantErr: true},
		{name: "Garbage", token: func(*testing.T) string { return "not-a-token" }, wantErr: true},
		{
			name: "SubjectNotUUID",
			token: func(t *testing.T) string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
					Subject:   "someone",
					Audience:  jwt.ClaimStrings{"authenticated"},
					ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				}).SignedString([]byte("secret"))
				require.NoError(t, err)

				return token
			},
			wantErr: true,
		},
		{
			name: "NoExpiry",
			token: func(t *testing.T) string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
					Subject:  userID.String(),
					Audience: jwt.ClaimStrings{"authenticated"},
				}).SignedString([]byte("secret"))
				require.NoError(t, err)

				return token
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Verify(tt.token(t))

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrUnauthorized)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, userID, got)
		})
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier("", "authenticated", "")
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	userID := uuid.New()

	signer, err := auth.NewVerifier("someone-elses-secret", "authenticated", "")
	require.NoError(t, err)

	token, err := signer.Mint(userID, time.Now(), time.Hour)
	require.NoError(t, err)

	got, err := auth.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = auth.Subject("not-a-token")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
