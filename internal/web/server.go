package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"time"
)

//go:embed assets/*
var embeddedAssets embed.FS

// Handler serves the status API, the calculation trace, the live result
// stream and the debug page. session, logs and room may be nil.
func Handler(status *Status, session WindSource, logs *LogBuffer, room *Room) http.Handler {
	mux := http.NewServeMux()

	assetsFS, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		assetsFS = nil
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/wind", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if session == nil {
			http.Error(w, "no session", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, newWindView(session.Snapshot()))
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if room != nil {
		mux.Handle("/ws/wind", room)
	}

	if assetsFS != nil {
		fileServer := http.FileServer(http.FS(assetsFS))
		mux.Handle("/assets/", http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			fileServer.ServeHTTP(w, r)
		})))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if r.URL.Path != "/" && (path.Dir(r.URL.Path) == "/api" || path.Dir(r.URL.Path) == "/assets") {
			http.NotFound(w, r)
			return
		}

		var page []byte
		if assetsFS != nil {
			page, _ = fs.ReadFile(assetsFS, "index.html")
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if page == nil {
			snap := status.Snapshot(time.Now().UTC())
			_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>AdvancedWind</title></head><body>")
			_, _ = fmt.Fprintf(w, "<h1>AdvancedWind</h1><p>UI unavailable. Use <a href=\"/api/wind\">/api/wind</a>.</p>")
			_, _ = fmt.Fprintf(w, "<pre>session=%s\nlines_in=%d\npublished=%d</pre></body></html>", snap.SessionID, snap.LinesIn, snap.Published)
			return
		}
		_, _ = w.Write(page)
	})

	return mux
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// Serve runs the HTTP server until ctx ends.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
