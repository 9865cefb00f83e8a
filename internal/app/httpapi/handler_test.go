package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/Arthur-Jacobina/datagotchi/internal/app"
	authsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/auth"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		AppName:           "Datagotchi API",
		AppVersion:        "test",
		Environment:       "development",
		JWTSecret:         "test-secret",
		SessionTTL:        time.Hour,
		RewardsConfigPath: "does-not-exist.yaml",
	}

	application, err := app.New(cfg, app.Stores{}, logging.NewDefault("test"))
	require.NoError(t, err)

	application.Auth.AttachVerifier(func(address, message, signature, publicKey string) bool {
		return signature == "good-signature"
	})

	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	return NewHandler(application, nil, logging.NewDefault("test"))
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

// authenticate runs the nonce/register flow and returns a bearer token.
func authenticate(t *testing.T, h http.Handler, wallet string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/nonce", "", map[string]string{"address": wallet})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var challenge authsvc.Challenge
	decodeBody(t, rec, &challenge)
	require.NotEmpty(t, challenge.Nonce)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", authsvc.Credentials{
		Address:   wallet,
		PublicKey: "02b3622bf4017bdfe317c58aed5f4c753f206b7db896046fa7d774bbc4bf7f8dc2",
		Signature: "good-signature",
		Message:   challenge.Message,
		Nonce:     challenge.Nonce,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var grant authsvc.TokenGrant
	decodeBody(t, rec, &grant)
	require.NotEmpty(t, grant.Token)
	return grant.Token
}

func createPet(t *testing.T, h http.Handler, token, name string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/pets", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "development", body["environment"])
}

func TestAuthFlow(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletAuthFlow")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "NWalletAuthFlow")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsBadSignature(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/nonce", "", map[string]string{"address": "NWalletBadSig"})
	require.Equal(t, http.StatusOK, rec.Code)

	var challenge authsvc.Challenge
	decodeBody(t, rec, &challenge)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", authsvc.Credentials{
		Address:   "NWalletBadSig",
		PublicKey: "pubkey",
		Signature: "forged",
		Message:   challenge.Message,
		Nonce:     challenge.Nonce,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPetLifecycle(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletPets")
	petID := createPet(t, h, token, "Byte")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/pets/"+petID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Byte")

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/users/NWalletPets/pets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), petID)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/pets/missing-pet", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestInstanceLifecycle(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletInstances")
	petID := createPet(t, h, token, "Pixel")

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/storage/pets/%s/instances", petID), "", map[string]interface{}{
		"content":  "orbital mechanics of binary stars",
		"category": "science",
		"knowledge": []map[string]string{
			{"content": "binary stars orbit a shared barycenter", "title": "Binary stars"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var detail struct {
		ID        string `json:"id"`
		Knowledge []struct {
			ID string `json:"id"`
		} `json:"knowledge"`
	}
	decodeBody(t, rec, &detail)
	require.NotEmpty(t, detail.ID)
	require.Len(t, detail.Knowledge, 1)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/instances", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), detail.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/datainstances/"+detail.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "binary stars")

	// attach endpoints take a bare array and reply 200
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/storage/datainstances/%s/knowledge", detail.ID), "", []map[string]string{
		{"content": "eclipsing binaries dim periodically", "title": "Eclipsing binaries"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/knowledge", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eclipsing binaries")
}

func TestInstanceValidation(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletValidation")
	petID := createPet(t, h, token, "Glitch")

	// missing content
	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/storage/pets/%s/instances", petID), "", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown pet
	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/pets/missing/instances", "", map[string]interface{}{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// malformed pagination
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/instances?limit=abc", petID), "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// out-of-range limit
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/instances?limit=5000", petID), "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestFullTextSearch(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletSearch")
	petID := createPet(t, h, token, "Query")

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/storage/pets/%s/instances", petID), "", map[string]interface{}{
		"content": "goroutines and channels in practice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/search?q=goroutines", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines")

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/users/%s/search?q=goroutines", "NWalletSearch"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines")

	// query is mandatory
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/search", petID), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSemanticSearchRequiresEmbedder(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/semantic/search?q=anything", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestSemanticSearchParamParsing(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/semantic/search?q=x&similarity_threshold=high", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/semantic/search?q=x&limit=abc", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScrapeRejectsInvalidURL(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/scraper/", "", map[string]string{"url": "notaurl"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNPROCESSABLE_ENTITY")
}

func TestAIRequiresConfiguration(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ai/inference", "", map[string]string{"prompt": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGameResultFlow(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletGames")
	petID := createPet(t, h, token, "Streak")

	// auth is mandatory
	rec := doJSON(t, h, http.MethodPost, "/api/v1/rewards/games/trivia-rush/result", "", map[string]interface{}{
		"pet_id": petID, "won": true,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/rewards/games/trivia-rush/result", token, map[string]interface{}{
		"pet_id": petID, "won": true, "score": 7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var outcome struct {
		PointsAwarded  int  `json:"points_awarded"`
		StreakExtended bool `json:"streak_extended"`
		Pet            struct {
			Trivia int `json:"trivia"`
			Streak int `json:"streak"`
		} `json:"pet"`
	}
	decodeBody(t, rec, &outcome)
	assert.True(t, outcome.StreakExtended)
	assert.Equal(t, 1, outcome.Pet.Streak)
	assert.Positive(t, outcome.PointsAwarded)
	assert.Positive(t, outcome.Pet.Trivia)

	// playing someone else's pet is rejected
	otherToken := authenticate(t, h, "NWalletIntruder")
	rec = doJSON(t, h, http.MethodPost, "/api/v1/rewards/games/trivia-rush/result", otherToken, map[string]interface{}{
		"pet_id": petID, "won": true,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// unknown game
	rec = doJSON(t, h, http.MethodPost, "/api/v1/rewards/games/not-a-game/result", token, map[string]interface{}{
		"pet_id": petID, "won": true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/rewards/pets/%s/events", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trivia-rush")
}

func TestAchievementCatalogue(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/rewards/achievements", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var achievements []struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &achievements)
	assert.NotEmpty(t, achievements)
}

func TestUserStatistics(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletStats")
	createPet(t, h, token, "Tama")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/users/NWalletStats/statistics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		PetCount int `json:"pet_count"`
	}
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.PetCount)

	// unknown wallets report zeroes, not errors
	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/users/NWalletNobody/statistics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateUsername(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletRename")

	rec := doJSON(t, h, http.MethodPut, "/api/v1/users/me/username", token, map[string]string{"username": "tamer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "tamer")
}

func TestPetExport(t *testing.T) {
	h := newTestServer(t)
	token := authenticate(t, h, "NWalletExport")
	petID := createPet(t, h, token, "Archive")

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/storage/pets/%s/instances", petID), "", map[string]interface{}{
		"content": "exported fact",
		"knowledge": []map[string]string{
			{"content": "knowledge travels with the export"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/storage/pets/%s/export", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var export struct {
		Pet struct {
			ID string `json:"id"`
		} `json:"pet"`
		Instances []struct {
			Knowledge []struct {
				Content string `json:"content"`
			} `json:"knowledge"`
		} `json:"instances"`
	}
	decodeBody(t, rec, &export)
	assert.Equal(t, petID, export.Pet.ID)
	require.Len(t, export.Instances, 1)
	require.Len(t, export.Instances[0].Knowledge, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/pets/missing/export", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
