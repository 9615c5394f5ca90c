package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rowline-app/rowline/internal/records"
)

// listRequestBody is the wire shape of records.list. Filter, order and
// grouping stay untyped here; the records package owns their validation.
type listRequestBody struct {
	TableOID   uint32      `json:"table_oid"`
	DatabaseID int64       `json:"database_id"`
	Limit      *int        `json:"limit"`
	Offset     *int        `json:"offset"`
	Order      interface{} `json:"order"`
	Filter     interface{} `json:"filter"`
	Grouping   interface{} `json:"grouping"`
}

// searchRequestBody is the wire shape of records.search.
type searchRequestBody struct {
	TableOID     uint32      `json:"table_oid"`
	DatabaseID   int64       `json:"database_id"`
	SearchParams interface{} `json:"search_params"`
	Limit        *int        `json:"limit"`
}

func (s *Server) handleRecordsList(c *fiber.Ctx) error {
	start := time.Now()

	var body listRequestBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return sendBadRequest(c, "INVALID_JSON", "request body is not valid JSON")
	}
	if body.TableOID == 0 {
		return sendBadRequest(c, "MISSING_TABLE", "table_oid is required")
	}
	if body.DatabaseID == 0 {
		return sendBadRequest(c, "MISSING_DATABASE", "database_id is required")
	}
	if body.Limit != nil && (*body.Limit < 0 || *body.Limit > s.cfg.API.MaxPageSize) {
		return sendBadRequest(c, "INVALID_LIMIT", "limit must be between 0 and the configured maximum page size")
	}
	if body.Offset != nil && *body.Offset < 0 {
		return sendBadRequest(c, "INVALID_OFFSET", "offset must not be negative")
	}

	req := records.ListRequest{
		TableOID:   body.TableOID,
		DatabaseID: body.DatabaseID,
		Limit:      body.Limit,
		Offset:     body.Offset,
	}

	var err error
	if req.Filter, err = records.ParseFilter(body.Filter); err != nil {
		return sendRPCError(c, err)
	}
	if req.Order, err = records.ParseOrder(body.Order); err != nil {
		return sendRPCError(c, err)
	}
	if req.Grouping, err = records.ParseGrouping(body.Grouping); err != nil {
		return sendRPCError(c, err)
	}

	result, err := s.service.List(c.Context(), req)
	if s.metrics != nil {
		rows := 0
		if result != nil {
			rows = len(result.Results)
		}
		s.metrics.RecordRPC("records.list", rows, time.Since(start), err)
	}
	if err != nil {
		return sendRPCError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleRecordsSearch(c *fiber.Ctx) error {
	start := time.Now()

	var body searchRequestBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return sendBadRequest(c, "INVALID_JSON", "request body is not valid JSON")
	}
	if body.TableOID == 0 {
		return sendBadRequest(c, "MISSING_TABLE", "table_oid is required")
	}
	if body.DatabaseID == 0 {
		return sendBadRequest(c, "MISSING_DATABASE", "database_id is required")
	}

	limit := s.cfg.API.DefaultSearchLimit
	if body.Limit != nil {
		if *body.Limit < 1 || *body.Limit > s.cfg.API.MaxPageSize {
			return sendBadRequest(c, "INVALID_LIMIT", "limit must be between 1 and the configured maximum page size")
		}
		limit = *body.Limit
	}

	params, err := records.ParseSearchParams(body.SearchParams)
	if err != nil {
		return sendRPCError(c, err)
	}

	result, err := s.service.Search(c.Context(), records.SearchRequest{
		TableOID:   body.TableOID,
		DatabaseID: body.DatabaseID,
		Params:     params,
		Limit:      limit,
	})
	if s.metrics != nil {
		rows := 0
		if result != nil {
			rows = len(result.Results)
		}
		s.metrics.RecordRPC("records.search", rows, time.Since(start), err)
	}
	if err != nil {
		return sendRPCError(c, err)
	}
	return c.JSON(result)
}
