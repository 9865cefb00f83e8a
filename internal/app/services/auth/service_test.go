package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, "test-secret", time.Hour, nil)
	svc.AttachVerifier(func(address, message, signature, publicKey string) bool {
		return signature == "good"
	})
	return svc, store
}

func signedCreds(address, nonce, message string) Credentials {
	return Credentials{
		Address:   address,
		PublicKey: "02abc",
		Signature: "good",
		Message:   message,
		Nonce:     nonce,
	}
}

func TestNonceCreatesProfile(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Len(t, ch.Nonce, 64)
	assert.Contains(t, ch.Message, ch.Nonce)

	prof, err := store.GetProfile(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, ch.Nonce, prof.Nonce)
}

func TestNonceRequiresAddress(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Nonce(context.Background(), "  ")
	require.Error(t, err)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)

	grant, err := svc.Register(ctx, signedCreds("NWallet1", ch.Nonce, ch.Message))
	require.NoError(t, err)
	require.NotEmpty(t, grant.Token)
	assert.Equal(t, "NWallet1", grant.Wallet)

	wallet, err := svc.Authenticate(ctx, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "NWallet1", wallet)
}

func TestNonceIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, signedCreds("NWallet1", ch.Nonce, ch.Message))
	require.NoError(t, err)

	// Same nonce again: rotated after first use.
	_, err = svc.Login(ctx, signedCreds("NWallet1", ch.Nonce, ch.Message))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid nonce")
}

func TestNonceMustAppearInMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)

	creds := signedCreds("NWallet1", ch.Nonce, "unrelated message")
	_, err = svc.Register(ctx, creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce not present")
}

func TestBadSignatureRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)

	creds := signedCreds("NWallet1", ch.Nonce, ch.Message)
	creds.Signature = "bad"
	_, err = svc.Register(ctx, creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestLoginUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Login(context.Background(), signedCreds("NUnknown", "n", "msg with n"))
	require.Error(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Nonce(ctx, "NWallet1")
	require.NoError(t, err)
	grant, err := svc.Register(ctx, signedCreds("NWallet1", ch.Nonce, ch.Message))
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, grant.Token))

	_, err = svc.Authenticate(ctx, grant.Token)
	require.Error(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "not-a-jwt")
	require.Error(t, err)
}

func TestExpiredSessionRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	token, err := svc.generateJWT("NWallet1")
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, profile.Session{
		ID:            "sess-1",
		WalletAddress: "NWallet1",
		TokenHash:     HashToken(token),
		ExpiresAt:     time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}
