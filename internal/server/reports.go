package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"qualityline/internal/domain"
	"qualityline/internal/engine"
	"qualityline/internal/events"
)

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-compliance",
		Method:      http.MethodGet,
		Path:        "/compliance",
		Summary:     "Mandatory function coverage",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Compliance `json:"body"`
	}, error) {
		return &struct {
			Body domain.Compliance `json:"body"`
		}{Body: e.Compliance()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Session headline counters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Dashboard `json:"body"`
	}, error) {
		return &struct {
			Body domain.Dashboard `json:"body"`
		}{Body: e.Dashboard()}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"process,issue,action,document,function_instance"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items := e.Events.Latest(limit+1, events.Filter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			BeforeID:   cursorID,
		})
		resp := paginatedEvents{Items: []domain.Event{}}
		if len(items) > limit {
			// next page starts below the last returned id
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
