package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Arthur-Jacobina/datagotchi/internal/config"
)

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Datagotchi API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: "/openapi.json", dom_id: "#swagger-ui"});
  </script>
</body>
</html>`

// registerDocs serves interactive API docs in development environments.
func registerDocs(r *mux.Router, cfg *config.Config) {
	if !cfg.ShowDocs() {
		return
	}

	r.HandleFunc("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(docsPage))
	}).Methods(http.MethodGet)

	r.HandleFunc("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, openAPISummary(cfg))
	}).Methods(http.MethodGet)
}

// openAPISummary is a hand-maintained skeleton, enough for swagger-ui to
// render the route list.
func openAPISummary(cfg *config.Config) map[string]interface{} {
	paths := map[string]interface{}{}
	for path, methods := range map[string][]string{
		"/api/v1/auth/nonce":                             {"post"},
		"/api/v1/auth/register":                          {"post"},
		"/api/v1/auth/login":                             {"post"},
		"/api/v1/auth/logout":                            {"post"},
		"/api/v1/auth/me":                                {"get"},
		"/api/v1/users/me/username":                      {"put"},
		"/api/v1/storage/users/{wallet}/pets":            {"get"},
		"/api/v1/storage/users/{wallet}/statistics":      {"get"},
		"/api/v1/storage/users/{wallet}/search":          {"get"},
		"/api/v1/storage/users/{wallet}/semantic/search": {"get"},
		"/api/v1/storage/pets":                           {"post"},
		"/api/v1/storage/pets/{petID}":                   {"get"},
		"/api/v1/storage/pets/{petID}/export":            {"get"},
		"/api/v1/storage/pets/{petID}/instances":         {"get", "post"},
		"/api/v1/storage/pets/{petID}/knowledge":         {"get"},
		"/api/v1/storage/pets/{petID}/search":            {"get"},
		"/api/v1/storage/pets/{petID}/semantic/search":   {"get"},
		"/api/v1/storage/datainstances/{id}":             {"get"},
		"/api/v1/storage/datainstances/{id}/knowledge":   {"get", "post"},
		"/api/v1/storage/datainstances/{id}/images":      {"get", "post"},
		"/api/v1/storage/semantic/search":                {"get"},
		"/api/v1/scraper/":                               {"post"},
		"/api/v1/scraper/twitter":                        {"post"},
		"/api/v1/ai/inference":                           {"post"},
		"/api/v1/ai/chat":                                {"post"},
		"/api/v1/ai/generate-flashcards":                 {"post"},
		"/api/v1/ai/generate-content":                    {"post"},
		"/api/v1/rewards/games/{game}/result":            {"post"},
		"/api/v1/rewards/achievements":                   {"get"},
		"/api/v1/rewards/pets/{petID}/achievements":      {"get"},
		"/api/v1/rewards/pets/{petID}/events":            {"get"},
		"/health":                                        {"get"},
	} {
		ops := map[string]interface{}{}
		for _, m := range methods {
			ops[m] = map[string]interface{}{"responses": map[string]interface{}{"200": map[string]interface{}{"description": "OK"}}}
		}
		paths[path] = ops
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   cfg.AppName,
			"version": cfg.AppVersion,
		},
		"paths": paths,
	}
}
