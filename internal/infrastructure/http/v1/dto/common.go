// Package dto provides the request and response bodies of the HTTP API.
package dto

import (
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = time.DateOnly

// ListQuery holds the search and paging parameters shared by list endpoints.
type ListQuery struct {
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// Filter converts the query into a domain list filter.
func (q ListQuery) Filter() domain.ListFilter {
	f := domain.ListFilter{Search: q.Search, Limit: q.Limit, Offset: q.Offset}
	f.Normalize()
	return f
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SetActiveRequest activates or deactivates a catalog entry.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ParseID parses a path or query id.
func ParseID(field, raw string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil {
		return id.ID{}, apperror.NewValidation("invalid " + field).
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return parsed, nil
}

// ParseDate parses an optional YYYY-MM-DD value.
func ParseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, apperror.NewValidation("invalid " + field + ", expected YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return &t, nil
}

// ParseTime parses an optional RFC 3339 timestamp; a bare date means its midnight UTC.
func ParseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	return ParseDate(field, raw)
}
