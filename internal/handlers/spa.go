package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type spaRoute struct {
	pattern *regexp.Regexp
	public  bool
}

// client side routes of the single page app
var spaRoutes = []spaRoute{
	{pattern: regexp.MustCompile(`^/auth$`), public: true},
	{pattern: regexp.MustCompile(`^/challenge/[^/]+/submit$`), public: true},
	{pattern: regexp.MustCompile(`^/$`)},
	{pattern: regexp.MustCompile(`^/portfolios$`)},
	{pattern: regexp.MustCompile(`^/upload$`)},
	{pattern: regexp.MustCompile(`^/profile$`)},
	{pattern: regexp.MustCompile(`^/analytics$`)},
	{pattern: regexp.MustCompile(`^/community$`)},
	{pattern: regexp.MustCompile(`^/community/[^/]+/chat$`)},
}

func matchSpaRoute(urlPath string) (spaRoute, bool) {
	if urlPath != "/" {
		urlPath = strings.TrimSuffix(urlPath, "/")
	}
	for _, route := range spaRoutes {
		if route.pattern.MatchString(urlPath) {
			return route, true
		}
	}
	return spaRoute{}, false
}

// spa serves index.html for the app's routes, the build's assets as files and
// sends everything else to /auth. Protected routes need a session.
func (h *Handlers) spa() http.Handler {
	staticDir := h.StaticDir
	if staticDir == "" {
		staticDir = "./public/static"
	}
	files := http.FileServer(http.Dir(staticDir))
	index := filepath.Join(staticDir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := path.Clean("/" + r.URL.Path)

		route, found := matchSpaRoute(urlPath)
		if !found {
			if urlPath != "/index.html" && isFile(filepath.Join(staticDir, filepath.FromSlash(urlPath))) {
				files.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "/auth", http.StatusFound)
			return
		}

		if !route.public {
			s, err := h.currentSession(r)
			if err != nil {
				h.Sugar.Error(err)
			}
			if s == nil {
				http.Redirect(w, r, "/auth", http.StatusFound)
				return
			}
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}

func isFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
