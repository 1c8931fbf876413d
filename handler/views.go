package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/pyama86/quera/domain/model"
)

const (
	inboxLimit = 20
	viewLimit  = 10
)

func (h *Handler) writeQueries(w http.ResponseWriter, queries []model.Query, err error) {
	if err != nil {
		slog.Error("failed to list queries", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	if queries == nil {
		queries = []model.Query{}
	}
	writeJSON(w, http.StatusOK, queries)
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	queries, err := h.ds.LatestQueries(inboxLimit)
	h.writeQueries(w, queries, err)
}

func (h *Handler) activeAssignments(w http.ResponseWriter, r *http.Request) {
	queries, err := h.ds.ActiveQueries(viewLimit)
	h.writeQueries(w, queries, err)
}

func (h *Handler) assignedToMe(w http.ResponseWriter, r *http.Request) {
	session, _ := actorFrom(r)
	queries, err := h.ds.AssignedQueries(session.UserID, viewLimit)
	h.writeQueries(w, queries, err)
}

func (h *Handler) solvedAssignments(w http.ResponseWriter, r *http.Request) {
	session, _ := actorFrom(r)
	queries, err := h.ds.SolvedQueries(session.UserID, viewLimit)
	h.writeQueries(w, queries, err)
}

type statsResponse struct {
	Total       int    `json:"total"`
	Open        int    `json:"open"`
	AvgResponse string `json:"avg_response"`
	TopCategory string `json:"top_category"`
}

func (h *Handler) quickStats(w http.ResponseWriter, r *http.Request) {
	queries, err := h.ds.AllQueries()
	if err != nil {
		slog.Error("AllQueries failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	stats := statsResponse{
		Total:       len(queries),
		AvgResponse: "2.5h", // placeholder, the original never computed it either
		TopCategory: "N/A",
	}

	categoryCount := map[string]int{}
	for _, q := range queries {
		if q.Status == model.StatusOpen {
			stats.Open++
		}
		categoryCount[q.Category]++
	}

	if top := topCategory(categoryCount); top != "" {
		stats.TopCategory = capitalize(top)
	}

	writeJSON(w, http.StatusOK, stats)
}

func topCategory(counts map[string]int) string {
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	// 同数の場合に出力が揺れないようにソートしてから比較する
	sort.Strings(categories)

	var top string
	var max int
	for _, c := range categories {
		if counts[c] > max {
			top = c
			max = counts[c]
		}
	}
	return top
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
