package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pyama86/quera/domain/infra"
	"github.com/pyama86/quera/domain/model"
)

type submitQueryRequest struct {
	Sender   string `json:"sender"`
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

// submitQuery creates an open query. Category and priority come from the
// form when given, otherwise from the tagger; a tagging failure never
// fails the submission, it falls back to the defaults.
func (h *Handler) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Sender == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "sender and message are required")
		return
	}
	if !model.ValidChannel(req.Channel) {
		writeError(w, http.StatusBadRequest, "channel must be one of email, chat, twitter, facebook")
		return
	}
	if req.Category != "" && !model.ValidCategory(req.Category) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if req.Priority != 0 && !model.ValidPriority(req.Priority) {
		writeError(w, http.StatusBadRequest, "priority must be between 1 and 5")
		return
	}

	category := req.Category
	priority := req.Priority
	if category == "" || priority == 0 {
		tag, err := h.tagger.TagQuery(r.Context(), req.Message)
		if err != nil {
			slog.Error("TagQuery failed, using defaults", slog.Any("err", err))
			tag = model.DefaultTag()
		}
		if category == "" {
			category = tag.Category
		}
		if priority == 0 {
			priority = tag.Priority
		}
	}

	query := &model.Query{
		ID:       uuid.NewString(),
		Sender:   req.Sender,
		Channel:  req.Channel,
		Message:  req.Message,
		Category: category,
		Priority: priority,
		Status:   model.StatusOpen,
	}

	if err := h.ds.SaveQuery(query); err != nil {
		slog.Error("SaveQuery failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to save query")
		return
	}

	h.notifier.Publish(model.ChangeEvent{
		Kind:  model.ChangeInserted,
		Table: "queries",
		ID:    query.ID,
	})

	if h.slack != nil && defaultChannel != "" {
		if err := infra.NotifyNewQuery(h.slack, defaultChannel, query); err != nil {
			slog.Error("NotifyNewQuery failed", slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusCreated, query)
}

func (h *Handler) assignQuery(w http.ResponseWriter, r *http.Request) {
	session, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	query, err := h.ds.GetQuery(r.PathValue("id"))
	if err != nil {
		slog.Error("GetQuery failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load query")
		return
	}
	if query == nil {
		writeError(w, http.StatusNotFound, "query not found")
		return
	}

	if err := query.Assign(session.UserID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if err := h.ds.SaveQuery(query); err != nil {
		slog.Error("SaveQuery failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to assign query")
		return
	}

	h.notifier.Publish(model.ChangeEvent{
		Kind:   model.ChangeUpdated,
		Table:  "queries",
		ID:     query.ID,
		Fields: []string{"status", "assigned_to"},
	})

	writeJSON(w, http.StatusOK, query)
}

func (h *Handler) resolveQuery(w http.ResponseWriter, r *http.Request) {
	query, err := h.ds.GetQuery(r.PathValue("id"))
	if err != nil {
		slog.Error("GetQuery failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load query")
		return
	}
	if query == nil {
		writeError(w, http.StatusNotFound, "query not found")
		return
	}

	if err := query.Resolve(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if err := h.ds.SaveQuery(query); err != nil {
		slog.Error("SaveQuery failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to resolve query")
		return
	}

	h.notifier.Publish(model.ChangeEvent{
		Kind:   model.ChangeUpdated,
		Table:  "queries",
		ID:     query.ID,
		Fields: []string{"status"},
	})

	writeJSON(w, http.StatusOK, query)
}

type tagQueryRequest struct {
	Message string `json:"message"`
}

// tagQuery is the standalone tagging boundary. Unlike submission it
// surfaces failures, but always with a usable default tag in the body.
func (h *Handler) tagQuery(w http.ResponseWriter, r *http.Request) {
	fail := func(message string) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    message,
			"category": model.DefaultCategory,
			"priority": model.DefaultPriority,
		})
	}

	var req tagQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail("invalid request body")
		return
	}
	if req.Message == "" {
		fail("Message is required")
		return
	}

	tag, err := h.tagger.TagQuery(r.Context(), req.Message)
	if err != nil {
		slog.Error("TagQuery failed", slog.Any("err", err))
		fail(err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tag)
}
