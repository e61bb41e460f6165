package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// mountStatic 把前端目录挂到 /web/，根路径跳过去。dir 为空时不挂
func mountStatic(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	r.Handle("/web/*", http.StripPrefix("/web/", http.FileServer(http.Dir(dir))))
	r.Get("/web", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/web/", http.StatusFound)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/web/", http.StatusFound)
	})
}
