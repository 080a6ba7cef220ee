package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/entity"
	"github.com/albapepper/chron/internal/query"
)

// entitiesResponse is the wire shape for both /chron/v0/entities and
// /chron/v0/versions: `{ items: EntityVersion[], next_page?: PageToken }`.
type entitiesResponse struct {
	Items    []entity.EntityVersion `json:"items"`
	NextPage *string                `json:"next_page,omitempty"`
}

func parseListParams(r *http.Request) (entity.Kind, query.ListParams, error) {
	q := r.URL.Query()

	kind, err := entity.ParseKind(q.Get("kind"))
	if err != nil {
		return 0, query.ListParams{}, err
	}

	p := query.ListParams{
		Order: query.ParseOrder(q.Get("order")),
	}

	if ids := q.Get("id"); ids != "" {
		p.IDs = strings.Split(ids, ",")
	}

	if n := q.Get("count"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil {
			p.Count = parsed
		}
	}

	if page := q.Get("page"); page != "" {
		tok, err := entity.DecodePageToken(page)
		if err != nil {
			return 0, query.ListParams{}, err
		}
		p.Page = &tok
	}
	if before := q.Get("before"); before != "" {
		ts, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return 0, query.ListParams{}, err
		}
		p.Before = &ts
	}
	if after := q.Get("after"); after != "" {
		ts, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return 0, query.ListParams{}, err
		}
		p.After = &ts
	}

	return kind, p, nil
}

// GetEntities serves /chron/v0/entities: the latest (or as-of) version of
// each entity of kind.
// @Summary List entities
// @Description Returns the latest (or as-of `at`) version of each entity of the given kind.
// @Tags entities
// @Produce json
// @Param kind query string true "Entity kind"
// @Param at query string false "RFC3339 instant to evaluate versions as of"
// @Param id query string false "Comma-separated entity id filter"
// @Param before query string false "RFC3339 instant, inclusive upper bound on valid_from"
// @Param after query string false "RFC3339 instant, inclusive lower bound on valid_from"
// @Param order query string false "asc or desc"
// @Param count query int false "Page size, capped at 1000"
// @Param page query string false "Opaque continuation token from a previous response"
// @Success 200 {object} entitiesResponse
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /chron/v0/entities [get]
func (h *Handler) GetEntities(w http.ResponseWriter, r *http.Request) {
	kind, p, err := parseListParams(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	if at := r.URL.Query().Get("at"); at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			respond.WriteBadRequest(w, "invalid at: "+err.Error())
			return
		}
		p.At = &ts
	}

	page, err := h.Query.List(r.Context(), kind, p)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}

	writeEntitiesJSON(w, page)
}

// GetVersions serves /chron/v0/versions: the version history of one or more
// entities, keyset-paginated.
// @Summary List entity version history
// @Description Returns the version history of entities of kind, jointly ordered by (valid_from, entity_id).
// @Tags entities
// @Produce json
// @Param kind query string true "Entity kind"
// @Param id query string false "Comma-separated entity id filter"
// @Param before query string false "RFC3339 instant, inclusive upper bound on valid_from"
// @Param after query string false "RFC3339 instant, inclusive lower bound on valid_from"
// @Param order query string false "asc or desc"
// @Param count query int false "Page size"
// @Param page query string false "Opaque continuation token from a previous response"
// @Success 200 {object} entitiesResponse
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /chron/v0/versions [get]
func (h *Handler) GetVersions(w http.ResponseWriter, r *http.Request) {
	kind, p, err := parseListParams(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.Query.Versions(r.Context(), kind, p)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}

	writeEntitiesJSON(w, page)
}

func writeEntitiesJSON(w http.ResponseWriter, page query.Page) {
	resp := entitiesResponse{Items: page.Items}
	if page.NextPage != nil {
		tok := page.NextPage.Encode()
		resp.NextPage = &tok
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}
