package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/quera/domain/infra"
	"github.com/slack-go/slack"
)

//go:generate mockgen -destination mock_infra.go -package handler github.com/pyama86/quera/domain/infra Tagger,SlackAPI

var defaultChannel = os.Getenv("DEFAULT_CHANNEL")

const sessionTTL = 24 * time.Hour

type Handler struct {
	ds       infra.Datastore
	tagger   infra.Tagger
	slack    infra.SlackAPI
	notifier *Notifier
	sessions *ttlcache.Cache[string, Session]
}

func NewHandler() (*Handler, error) {
	var ds infra.Datastore
	var err error
	if os.Getenv("DB_DRIVER") == "dynamodb" {
		ds, err = infra.NewDynamoDB()
		if err != nil {
			return nil, err
		}
	} else {
		ds, err = infra.NewDataBase()
		if err != nil {
			return nil, err
		}
	}

	var tagger infra.Tagger
	if os.Getenv("TAGGER_DRIVER") == "openai" {
		tagger, err = infra.NewOpenAI()
		if err != nil {
			return nil, err
		}
	} else {
		tagger = infra.NewGemini()
	}

	notifier, err := NewNotifier()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		ds:       ds,
		tagger:   tagger,
		notifier: notifier,
		sessions: ttlcache.New(ttlcache.WithTTL[string, Session](sessionTTL)),
	}
	if os.Getenv("SLACK_BOT_TOKEN") != "" {
		h.slack = slack.New(os.Getenv("SLACK_BOT_TOKEN"))
	}
	go h.sessions.Start()
	return h, nil
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/session", h.login)
	mux.Handle("DELETE /api/v1/session", h.auth(http.HandlerFunc(h.logout)))
	mux.Handle("GET /api/v1/session", h.auth(http.HandlerFunc(h.currentSession)))

	mux.Handle("POST /api/v1/queries", h.auth(http.HandlerFunc(h.submitQuery)))
	mux.Handle("POST /api/v1/queries/{id}/assign", h.auth(http.HandlerFunc(h.assignQuery)))
	mux.Handle("POST /api/v1/queries/{id}/resolve", h.auth(http.HandlerFunc(h.resolveQuery)))

	// 元のedge functionに相当する境界。セッション不要
	mux.HandleFunc("POST /api/v1/tag-query", h.tagQuery)

	mux.Handle("GET /api/v1/views/inbox", h.auth(http.HandlerFunc(h.inbox)))
	mux.Handle("GET /api/v1/views/active", h.auth(http.HandlerFunc(h.activeAssignments)))
	mux.Handle("GET /api/v1/views/assigned", h.auth(http.HandlerFunc(h.assignedToMe)))
	mux.Handle("GET /api/v1/views/solved", h.auth(http.HandlerFunc(h.solvedAssignments)))
	mux.Handle("GET /api/v1/stats", h.auth(http.HandlerFunc(h.quickStats)))

	mux.Handle("GET /api/v1/events", h.auth(http.HandlerFunc(h.streamEvents)))

	return logRequests(mux)
}

type contextKey string

const actorKey contextKey = "actor"

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		item := h.sessions.Get(token)
		if item == nil {
			writeError(w, http.StatusUnauthorized, "session expired or unknown")
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, item.Value())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

func actorFrom(r *http.Request) (Session, bool) {
	session, ok := r.Context().Value(actorKey).(Session)
	return session, ok
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
