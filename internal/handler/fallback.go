package handler

import (
	"fmt"
	"net/http"

	"github.com/linkpulse/linkpulse/internal/redirect"
)

// fallbackPage is one static informational page served when a redirect is
// blocked.
type fallbackPage struct {
	Status  int
	Title   string
	Message string
}

// fallbackPages maps fallback routes to their page content. The routes
// mirror the URLs the resolution engine redirects denied hits to.
var fallbackPages = map[string]fallbackPage{
	redirect.FallbackPaused: {
		Status:  http.StatusOK,
		Title:   "Link paused",
		Message: "This link has been paused by its owner.",
	},
	redirect.FallbackExpired: {
		Status:  http.StatusGone,
		Title:   "Link expired",
		Message: "This link has expired and no longer redirects.",
	},
	redirect.FallbackNotFound: {
		Status:  http.StatusNotFound,
		Title:   "Link not found",
		Message: "The link you followed does not exist.",
	},
	redirect.FallbackLimitReached: {
		Status:  http.StatusOK,
		Title:   "Limit reached",
		Message: "This link has reached its click limit for today. Try again tomorrow.",
	},
	redirect.FallbackNotYetActive: {
		Status:  http.StatusOK,
		Title:   "Not yet active",
		Message: "This link is not active yet. Check back later.",
	},
	redirect.FallbackGeoBlocked: {
		Status:  http.StatusOK,
		Title:   "Not available in your region",
		Message: "This link is not available from your location.",
	},
}

// FallbackRoutes returns the informational routes in a stable order, for
// router registration.
func FallbackRoutes() []string {
	return []string{
		redirect.FallbackPaused,
		redirect.FallbackExpired,
		redirect.FallbackNotFound,
		redirect.FallbackLimitReached,
		redirect.FallbackNotYetActive,
		redirect.FallbackGeoBlocked,
	}
}

// Fallback serves the static informational page for a blocked redirect.
// Registered at each route in FallbackRoutes.
func Fallback(w http.ResponseWriter, r *http.Request) {
	page, ok := fallbackPages[r.URL.Path]
	if !ok {
		NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(page.Status)
	fmt.Fprintf(w, fallbackHTML, page.Title, page.Title, page.Message)
}

const fallbackHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; background: #f6f7f9; color: #1f2933; }
main { text-align: center; padding: 2rem; }
h1 { font-size: 1.5rem; margin-bottom: 0.5rem; }
p { color: #52606d; }
</style>
</head>
<body>
<main>
<h1>%s</h1>
<p>%s</p>
</main>
</body>
</html>
`
