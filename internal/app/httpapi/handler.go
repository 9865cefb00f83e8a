// Package httpapi exposes the application services over REST
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/Arthur-Jacobina/datagotchi/internal/app"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	authsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/auth"
	contentsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/content"
	rewardssvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/rewards"
	searchsvc "github.com/Arthur-Jacobina/datagotchi/internal/app/services/search"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
	"github.com/Arthur-Jacobina/datagotchi/internal/metrics"
	"github.com/Arthur-Jacobina/datagotchi/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logging.Logger
}

// NewHandler returns a router exposing the REST API. Authenticated routes
// use the application's auth service; metrics are served when m is non-nil.
func NewHandler(application *app.Application, m *metrics.Metrics, log *logging.Logger) *mux.Router {
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}
	auth := middleware.NewAuth(application.Auth, log)

	r := mux.NewRouter()
	r.HandleFunc("/", h.banner).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/nonce", h.authNonce).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", h.authRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.authLogin).Methods(http.MethodPost)
	api.Handle("/auth/logout", auth.Required(http.HandlerFunc(h.authLogout))).Methods(http.MethodPost)
	api.Handle("/auth/me", auth.Required(http.HandlerFunc(h.authMe))).Methods(http.MethodGet)

	api.Handle("/users/me/username", auth.Required(http.HandlerFunc(h.updateUsername))).Methods(http.MethodPut)
	api.HandleFunc("/storage/users/{wallet}/pets", h.listPets).Methods(http.MethodGet)
	api.HandleFunc("/storage/users/{wallet}/statistics", h.userStatistics).Methods(http.MethodGet)
	api.HandleFunc("/storage/users/{wallet}/search", h.userSearch).Methods(http.MethodGet)
	api.HandleFunc("/storage/users/{wallet}/semantic/search", h.userSemanticSearch).Methods(http.MethodGet)

	api.Handle("/storage/pets", auth.Optional(http.HandlerFunc(h.createPet))).Methods(http.MethodPost)
	api.HandleFunc("/storage/pets/{petID}", h.getPet).Methods(http.MethodGet)
	api.HandleFunc("/storage/pets/{petID}/export", h.exportPet).Methods(http.MethodGet)
	api.HandleFunc("/storage/pets/{petID}/instances", h.createInstance).Methods(http.MethodPost)
	api.HandleFunc("/storage/pets/{petID}/instances", h.listInstances).Methods(http.MethodGet)
	api.HandleFunc("/storage/pets/{petID}/knowledge", h.petKnowledge).Methods(http.MethodGet)
	api.HandleFunc("/storage/pets/{petID}/search", h.petSearch).Methods(http.MethodGet)
	api.HandleFunc("/storage/pets/{petID}/semantic/search", h.petSemanticSearch).Methods(http.MethodGet)
	api.HandleFunc("/storage/datainstances/{instanceID}", h.getInstance).Methods(http.MethodGet)
	api.HandleFunc("/storage/datainstances/{instanceID}/knowledge", h.attachKnowledge).Methods(http.MethodPost)
	api.HandleFunc("/storage/datainstances/{instanceID}/knowledge", h.instanceKnowledge).Methods(http.MethodGet)
	api.HandleFunc("/storage/datainstances/{instanceID}/images", h.attachImages).Methods(http.MethodPost)
	api.HandleFunc("/storage/datainstances/{instanceID}/images", h.instanceImages).Methods(http.MethodGet)
	api.HandleFunc("/storage/semantic/search", h.globalSemanticSearch).Methods(http.MethodGet)

	api.HandleFunc("/scraper/", h.scrape).Methods(http.MethodPost)
	api.HandleFunc("/scraper/twitter", h.scrape).Methods(http.MethodPost)

	api.HandleFunc("/ai/inference", h.aiInference).Methods(http.MethodPost)
	api.HandleFunc("/ai/chat", h.aiChat).Methods(http.MethodPost)
	api.HandleFunc("/ai/generate-flashcards", h.aiFlashcards).Methods(http.MethodPost)
	api.HandleFunc("/ai/generate-content", h.aiGenerateContent).Methods(http.MethodPost)

	api.Handle("/rewards/games/{game}/result", auth.Required(http.HandlerFunc(h.gameResult))).Methods(http.MethodPost)
	api.HandleFunc("/rewards/achievements", h.listAchievements).Methods(http.MethodGet)
	api.HandleFunc("/rewards/pets/{petID}/achievements", h.petAchievements).Methods(http.MethodGet)
	api.HandleFunc("/rewards/pets/{petID}/events", h.petEvents).Methods(http.MethodGet)

	registerDocs(r, application.Config())

	return r
}

func (h *handler) banner(w http.ResponseWriter, r *http.Request) {
	cfg := h.app.Config()
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    cfg.AppName,
		"version": cfg.AppVersion,
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	cfg := h.app.Config()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": cfg.Environment,
		"version":     cfg.AppVersion,
	})
}

func (h *handler) authNonce(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	challenge, err := h.app.Auth.Nonce(r.Context(), payload.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *handler) authRegister(w http.ResponseWriter, r *http.Request) {
	var creds authsvc.Credentials
	if err := decodeJSON(r.Body, &creds); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	grant, err := h.app.Auth.Register(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *handler) authLogin(w http.ResponseWriter, r *http.Request) {
	var creds authsvc.Credentials
	if err := decodeJSON(r.Body, &creds); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	grant, err := h.app.Auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *handler) authLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.app.Auth.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) authMe(w http.ResponseWriter, r *http.Request) {
	wallet := logging.GetWallet(r.Context())
	prof, err := h.app.Profiles.Get(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *handler) updateUsername(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	wallet := logging.GetWallet(r.Context())
	prof, err := h.app.Profiles.UpdateUsername(r.Context(), wallet, payload.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *handler) userStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Profiles.Statistics(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) createPet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string `json:"name"`
		OwnerWallet string `json:"owner_wallet,omitempty"`
		Rarity      string `json:"rarity,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	owner := payload.OwnerWallet
	if wallet := logging.GetWallet(r.Context()); wallet != "" {
		owner = wallet
	}

	created, err := h.app.Pets.Create(r.Context(), pet.Pet{
		Name:        payload.Name,
		OwnerWallet: owner,
		Rarity:      pet.Rarity(payload.Rarity),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listPets(w http.ResponseWriter, r *http.Request) {
	pets, err := h.app.Pets.List(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pets)
}

func (h *handler) getPet(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Pets.Get(r.Context(), mux.Vars(r)["petID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) exportPet(w http.ResponseWriter, r *http.Request) {
	export, err := h.app.Pets.Export(r.Context(), mux.Vars(r)["petID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *handler) createInstance(w http.ResponseWriter, r *http.Request) {
	var input contentsvc.CreateInstanceInput
	if err := decodeJSON(r.Body, &input); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	detail, err := h.app.Content.CreateInstance(r.Context(), mux.Vars(r)["petID"], input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *handler) listInstances(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	instances, err := h.app.Content.ListInstances(r.Context(), mux.Vars(r)["petID"], limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *handler) getInstance(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.Content.GetInstance(r.Context(), mux.Vars(r)["instanceID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// attachKnowledge accepts a bare JSON array of knowledge items.
func (h *handler) attachKnowledge(w http.ResponseWriter, r *http.Request) {
	var items []contentsvc.KnowledgeInput
	if err := decodeJSON(r.Body, &items); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	attached, err := h.app.Content.AttachKnowledge(r.Context(), mux.Vars(r)["instanceID"], items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attached)
}

func (h *handler) instanceKnowledge(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Content.ListInstanceKnowledge(r.Context(), mux.Vars(r)["instanceID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// attachImages accepts a bare JSON array of image references.
func (h *handler) attachImages(w http.ResponseWriter, r *http.Request) {
	var items []contentsvc.ImageInput
	if err := decodeJSON(r.Body, &items); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	attached, err := h.app.Content.AttachImages(r.Context(), mux.Vars(r)["instanceID"], items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attached)
}

func (h *handler) instanceImages(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Content.ListInstanceImages(r.Context(), mux.Vars(r)["instanceID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) petKnowledge(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.app.Content.ListPetKnowledge(r.Context(), mux.Vars(r)["petID"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) petSearch(w http.ResponseWriter, r *http.Request) {
	h.fullTextSearch(w, r, searchsvc.Scope{PetID: mux.Vars(r)["petID"]})
}

func (h *handler) userSearch(w http.ResponseWriter, r *http.Request) {
	h.fullTextSearch(w, r, searchsvc.Scope{Wallet: mux.Vars(r)["wallet"]})
}

func (h *handler) fullTextSearch(w http.ResponseWriter, r *http.Request, scope searchsvc.Scope) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := h.app.Search.FullText(r.Context(), scope, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) petSemanticSearch(w http.ResponseWriter, r *http.Request) {
	h.semanticSearch(w, r, searchsvc.Scope{PetID: mux.Vars(r)["petID"]})
}

func (h *handler) userSemanticSearch(w http.ResponseWriter, r *http.Request) {
	h.semanticSearch(w, r, searchsvc.Scope{Wallet: mux.Vars(r)["wallet"]})
}

func (h *handler) globalSemanticSearch(w http.ResponseWriter, r *http.Request) {
	h.semanticSearch(w, r, searchsvc.Scope{})
}

func (h *handler) semanticSearch(w http.ResponseWriter, r *http.Request, scope searchsvc.Scope) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	threshold, err := queryFloat(r, "similarity_threshold", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := h.app.Search.Semantic(r.Context(), scope, r.URL.Query().Get("q"), limit, threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *handler) scrape(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	page, err := h.app.Scraper.Scrape(r.Context(), payload.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) aiInference(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt   string   `json:"prompt"`
		Contexts []string `json:"contexts,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	answer, err := h.app.AI.Complete(r.Context(), payload.Prompt, payload.Contexts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// aiChat answers a message, optionally grounding it on a pet's knowledge.
func (h *handler) aiChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
		PetID   string `json:"pet_id,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	var contexts []string
	if payload.PetID != "" {
		items, err := h.app.Content.ListPetKnowledge(r.Context(), payload.PetID, 20)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, k := range items {
			contexts = append(contexts, k.Content)
		}
	}

	answer, err := h.app.AI.Complete(r.Context(), payload.Message, contexts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *handler) aiFlashcards(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text           string `json:"text"`
		TargetLanguage string `json:"target_language,omitempty"`
		Count          int    `json:"count,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	cards, err := h.app.AI.GenerateFlashcards(r.Context(), payload.Text, payload.TargetLanguage, payload.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"flashcards": cards})
}

func (h *handler) aiGenerateContent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ContentType string `json:"content_type"`
		Text        string `json:"text"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	generated, err := h.app.AI.GenerateContent(r.Context(), payload.ContentType, payload.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated)
}

func (h *handler) gameResult(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PetID string `json:"pet_id"`
		Won   bool   `json:"won"`
		Score int    `json:"score,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	wallet := logging.GetWallet(r.Context())
	outcome, err := h.app.Rewards.RecordGameResult(r.Context(), wallet, payload.PetID, mux.Vars(r)["game"], rewardssvc.GameResult{
		Won:   payload.Won,
		Score: payload.Score,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *handler) listAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.app.Rewards.ListAchievements(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

func (h *handler) petAchievements(w http.ResponseWriter, r *http.Request) {
	unlocks, err := h.app.Rewards.PetAchievements(r.Context(), mux.Vars(r)["petID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unlocks)
}

func (h *handler) petEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.app.Rewards.PetEvents(r.Context(), mux.Vars(r)["petID"], limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// queryInt parses an optional integer query parameter. Malformed values are
// rejected as unprocessable, matching service-level parameter validation.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Unprocessable(fmt.Sprintf("%s must be an integer", name))
	}
	return value, nil
}

// queryFloat parses an optional float query parameter the same way.
func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Unprocessable(fmt.Sprintf("%s must be a number", name))
	}
	return value, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperr.Internal("internal error", err)
	}
	writeJSON(w, svcErr.HTTPStatus, map[string]interface{}{"error": svcErr})
}
