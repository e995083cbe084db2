// Package web serves the embedded gym pages. Access control is applied by
// api.PageGate in front of the handler.
package web

import (
	"embed"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist/*
var content embed.FS

// MemberFunc returns the display name of the member behind the request, or
// "" when there is none. When nil, no member meta tag is injected.
type MemberFunc func(r *http.Request) string

// Route prefixes that map onto a page other than their own name.
var pageAliases = map[string]string{
	"admin":   "admin.html",
	"gestion": "admin.html",
}

// Handler returns an http.Handler that serves the embedded pages and assets.
//
// Pages are resolved by first path segment: /clases serves clases.html and
// everything under /admin or /gestion serves admin.html. HTML responses get a
// <meta name="gym-member" content="..."> tag before </head> when memberFunc
// yields a name.
func Handler(memberFunc MemberFunc) (http.Handler, error) {
	fsys, err := fs.Sub(content, "dist")
	if err != nil {
		return nil, fmt.Errorf("loading embedded web assets: %w", err)
	}

	pages := make(map[string]string)
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing embedded pages: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".html" {
			continue
		}
		b, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", e.Name(), err)
		}
		pages[e.Name()] = string(b)
	}
	if _, ok := pages["index.html"]; !ok {
		return nil, fmt.Errorf("embedded index.html is missing")
	}

	static := http.FileServer(http.FS(fsys))

	servePage := func(w http.ResponseWriter, r *http.Request, name string) {
		body := pages[name]
		if memberFunc != nil {
			if who := memberFunc(r); who != "" {
				tag := `<meta name="gym-member" content="` + html.EscapeString(who) + `">`
				body = strings.Replace(body, "</head>", tag+"\n  </head>", 1)
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if cleanPath == "." || cleanPath == "" {
			servePage(w, r, "index.html")
			return
		}
		if ext := path.Ext(cleanPath); ext != "" {
			// Pages are only reachable through their route.
			if ext == ".html" {
				http.NotFound(w, r)
				return
			}
			if _, err := fs.Stat(fsys, cleanPath); err == nil {
				static.ServeHTTP(w, r)
				return
			}
			http.NotFound(w, r)
			return
		}

		segment, _, _ := strings.Cut(cleanPath, "/")
		name, ok := pageAliases[segment]
		if !ok {
			name = segment + ".html"
		}
		if _, ok := pages[name]; !ok {
			http.NotFound(w, r)
			return
		}
		servePage(w, r, name)
	}), nil
}
