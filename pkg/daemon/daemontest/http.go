package daemontest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/model"
)

// Serve exposes f over the daemon HTTP API, so the production client can be
// driven against the fake's state. The server is closed when the test ends.
func Serve(t testing.TB, f *Fake) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serve(f, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serve(f *Fake, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rest := strings.TrimPrefix(r.URL.Path, "/api/servers")
	if rest == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	if rest == "" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UUID              string `json:"uuid"`
			StartOnCompletion bool   `json:"start_on_completion"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply(w, f.CreateServer(ctx, &model.Server{UUID: body.UUID}, body.StartOnCompletion), nil)
		return
	}

	parts := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	s := &model.Server{UUID: parts[0]}
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		details, err := f.ServerDetails(ctx, s)
		reply(w, err, details)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		reply(w, f.DeleteServer(ctx, s), nil)
	case len(parts) == 2 && parts[1] == "sync" && r.Method == http.MethodPost:
		reply(w, f.SyncServer(ctx, s), nil)
	case len(parts) == 2 && parts[1] == "power" && r.Method == http.MethodPost:
		var body struct {
			Action daemon.PowerAction `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply(w, f.SendPower(ctx, s, body.Action), nil)
	default:
		http.NotFound(w, r)
	}
}

func reply(w http.ResponseWriter, err error, out interface{}) {
	if err != nil {
		status := http.StatusBadGateway
		var re *daemon.RequestError
		if errors.As(err, &re) {
			status = re.StatusCode
		}
		http.Error(w, err.Error(), status)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
