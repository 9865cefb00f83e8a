// Package auth implements wallet-signature authentication: nonce issuance,
// Neo N3 signature verification, JWT sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

const issuer = "datagotchi"

// Credentials is a signed login or registration request.
type Credentials struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
}

// Claims carries the wallet address inside the JWT.
type Claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// Service manages nonces, signature checks and sessions.
type Service struct {
	profiles storage.ProfileStore
	sessions storage.SessionStore
	secret   []byte
	ttl      time.Duration
	log      *logging.Logger

	// verify is swappable so handler tests do not need real key material.
	verify func(address, message, signature, publicKey string) bool
}

// New constructs an auth service.
func New(profiles storage.ProfileStore, sessions storage.SessionStore, secret string, ttl time.Duration, log *logging.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logging.NewDefault("auth")
	}
	return &Service{
		profiles: profiles,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		log:      log,
		verify:   verifyNeoSignature,
	}
}

// AttachVerifier overrides the wallet signature check. Used to plug in
// alternative schemes or fakes.
func (s *Service) AttachVerifier(fn func(address, message, signature, publicKey string) bool) {
	if fn != nil {
		s.verify = fn
	}
}

// Challenge is the response to a nonce request.
type Challenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// Nonce issues a fresh nonce for the wallet, creating the profile on first
// sight. The returned message must be signed as-is.
func (s *Service) Nonce(ctx context.Context, address string) (Challenge, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Challenge{}, apperr.Validation("address is required")
	}

	nonce, err := generateNonce()
	if err != nil {
		return Challenge{}, apperr.Internal("generate nonce", err)
	}

	if _, err := s.profiles.GetProfile(ctx, address); err != nil {
		if _, err := s.profiles.CreateProfile(ctx, profile.Profile{WalletAddress: address}); err != nil {
			return Challenge{}, apperr.Internal("create profile", err)
		}
		s.log.Infof("profile created for wallet %s", address)
	}
	if err := s.sessions.UpdateNonce(ctx, address, nonce); err != nil {
		return Challenge{}, apperr.Internal("store nonce", err)
	}

	message := fmt.Sprintf("Sign this message to authenticate with Datagotchi.\n\nNonce: %s\nTimestamp: %d", nonce, time.Now().Unix())
	return Challenge{Nonce: nonce, Message: message}, nil
}

// TokenGrant is the response to a successful login or registration.
type TokenGrant struct {
	Wallet string          `json:"wallet_address"`
	Token  string          `json:"token"`
	User   profile.Profile `json:"user"`
}

// Register verifies wallet ownership and issues the first session. A profile
// is created when the nonce flow has not already done so.
func (s *Service) Register(ctx context.Context, creds Credentials) (TokenGrant, error) {
	if err := s.checkCredentials(creds); err != nil {
		return TokenGrant{}, err
	}

	prof, err := s.profiles.GetProfile(ctx, creds.Address)
	if err != nil {
		prof, err = s.profiles.CreateProfile(ctx, profile.Profile{WalletAddress: creds.Address})
		if err != nil {
			return TokenGrant{}, apperr.Internal("create profile", err)
		}
	}
	return s.grant(ctx, prof, creds)
}

// Login verifies wallet ownership for an existing profile.
func (s *Service) Login(ctx context.Context, creds Credentials) (TokenGrant, error) {
	if err := s.checkCredentials(creds); err != nil {
		return TokenGrant{}, err
	}

	prof, err := s.profiles.GetProfile(ctx, creds.Address)
	if err != nil {
		return TokenGrant{}, apperr.NotFound("user")
	}
	return s.grant(ctx, prof, creds)
}

func (s *Service) checkCredentials(creds Credentials) error {
	if creds.Address == "" {
		return apperr.Validation("address is required")
	}
	if creds.PublicKey == "" || creds.Signature == "" || creds.Message == "" {
		return apperr.Validation("publicKey, signature, and message are required")
	}
	if creds.Nonce == "" {
		return apperr.Validation("nonce is required")
	}
	if !s.verify(creds.Address, creds.Message, creds.Signature, creds.PublicKey) {
		return apperr.Unauthorized("invalid signature")
	}
	return nil
}

// grant enforces single-use nonce binding, then issues a JWT and records the
// session by token hash.
func (s *Service) grant(ctx context.Context, prof profile.Profile, creds Credentials) (TokenGrant, error) {
	if prof.Nonce == "" || prof.Nonce != creds.Nonce {
		return TokenGrant{}, apperr.Unauthorized("invalid nonce")
	}
	if !strings.Contains(creds.Message, prof.Nonce) {
		return TokenGrant{}, apperr.Unauthorized("nonce not present in signed message")
	}

	token, err := s.generateJWT(prof.WalletAddress)
	if err != nil {
		return TokenGrant{}, apperr.Internal("generate token", err)
	}

	now := time.Now().UTC()
	_, err = s.sessions.CreateSession(ctx, profile.Session{
		ID:            uuid.NewString(),
		WalletAddress: prof.WalletAddress,
		TokenHash:     HashToken(token),
		ExpiresAt:     now.Add(s.ttl),
		LastSeenAt:    now,
		CreatedAt:     now,
	})
	if err != nil {
		return TokenGrant{}, apperr.Internal("create session", err)
	}

	// Rotate the nonce so the signature cannot be replayed.
	if next, err := generateNonce(); err == nil {
		_ = s.sessions.UpdateNonce(ctx, prof.WalletAddress, next)
	}

	s.log.Infof("session issued for wallet %s", prof.WalletAddress)
	return TokenGrant{Wallet: prof.WalletAddress, Token: token, User: prof}, nil
}

// Logout deletes the session for the presented token. Unknown tokens are a
// no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, HashToken(token))
}

// Authenticate validates a JWT against its live session and returns the
// wallet address it was issued to.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	wallet, err := s.validateJWT(token)
	if err != nil {
		return "", apperr.Unauthorized("invalid token")
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		return "", apperr.Unauthorized("session expired")
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.sessions.DeleteSession(ctx, sess.TokenHash)
		return "", apperr.Unauthorized("session expired")
	}
	_ = s.sessions.TouchSession(ctx, sess.ID)

	return wallet, nil
}

func (s *Service) generateJWT(wallet string) (string, error) {
	claims := &Claims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) validateJWT(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.Wallet, nil
	}
	return "", fmt.Errorf("invalid token")
}

// HashToken returns the sha256 hex digest used to store session tokens.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func generateNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// verifyNeoSignature checks a hex-encoded secp256r1 signature over
// sha256(message) and that the public key hashes to the claimed address.
func verifyNeoSignature(address, message, signature, publicKey string) bool {
	pub, err := keys.NewPublicKeyFromString(publicKey)
	if err != nil {
		return false
	}
	if pub.Address() != address {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return pub.Verify(sig, digest[:])
}
