// Package charging exposes the charging controller over HTTP.
package charging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharge/core/control"
	"github.com/kilianp07/smartcharge/core/journal"
)

// Controller is the part of the controller served by the API.
type Controller interface {
	Status() control.Update
	ActionLog() []string
	DebugDump() control.Dump
	SetUserInput(key, value string) error
	ClearManualOverride()
	RequestRefresh()
}

// NewHandler returns the charging API under /api/charging/. Requests must
// include an Authorization header with "Bearer <token>" when token is
// non-empty.
func NewHandler(ctrl Controller, store journal.Store, token string) http.Handler {
	if store == nil {
		store = journal.NopStore{}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/charging/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, ctrl.Status())
	})
	mux.HandleFunc("GET /api/charging/log", func(w http.ResponseWriter, _ *http.Request) {
		lines := ctrl.ActionLog()
		if lines == nil {
			lines = []string{}
		}
		writeJSON(w, lines)
	})
	mux.HandleFunc("GET /api/charging/debug", func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		b, err := control.EncodeDump(ctrl.DebugDump(), format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if format == "yaml" || format == "yml" {
			w.Header().Set("Content-Type", "application/yaml")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		_, _ = w.Write(b)
	})
	mux.HandleFunc("GET /api/charging/journal", func(w http.ResponseWriter, r *http.Request) {
		q, err := journalQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		writeJSON(w, records)
	})
	mux.HandleFunc("POST /api/charging/settings", func(w http.ResponseWriter, r *http.Request) {
		applySettings(w, r, ctrl)
	})
	mux.HandleFunc("POST /api/charging/override/clear", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.ClearManualOverride()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/charging/refresh", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.RequestRefresh()
		w.WriteHeader(http.StatusAccepted)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func journalQuery(r *http.Request) (journal.Query, error) {
	q := journal.Query{Kind: journal.Kind(r.URL.Query().Get("kind"))}
	switch q.Kind {
	case "", journal.KindAction, journal.KindSession:
	default:
		return q, fmt.Errorf("unknown kind %q", q.Kind)
	}
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid start: %w", err)
		}
		q.Start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid end: %w", err)
		}
		q.End = t
	}
	return q, nil
}

type settingsResult struct {
	Applied []string `json:"applied"`
	Error   string   `json:"error,omitempty"`
}

// applySettings applies a JSON object of setting to value in key order. Unknown
// keys reject the whole request; an invalid value stops at that key.
func applySettings(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	known := make(map[string]bool)
	for _, k := range control.SettingKeys() {
		known[k] = true
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		if !known[k] {
			http.Error(w, fmt.Sprintf("%v: %s", control.ErrUnknownSetting, k), http.StatusBadRequest)
			return
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := settingsResult{Applied: []string{}}
	for _, k := range keys {
		if err := ctrl.SetUserInput(k, settingValue(body[k])); err != nil {
			res.Error = err.Error()
			status := http.StatusInternalServerError
			if errors.Is(err, control.ErrInvalidValue) || errors.Is(err, control.ErrUnknownSetting) {
				status = http.StatusBadRequest
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(res)
			return
		}
		res.Applied = append(res.Applied, k)
	}
	writeJSON(w, res)
}

func settingValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
