package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fstash/internal/store"
)

const dateOnlyLayout = "2006-01-02"

// parseListFilter maps list query parameters onto a store filter.
// Rejections name the offending parameter so clients can point at
// the bad input.
func parseListFilter(r *http.Request) (store.ListFilter, error) {
	var filter store.ListFilter
	query := r.URL.Query()

	filter.Search = strings.TrimSpace(query.Get("search"))
	filter.FileType = strings.TrimSpace(query.Get("file_type"))

	sizeMin, err := parseSizeParam(query.Get("size_min"), "size_min")
	if err != nil {
		return filter, err
	}
	filter.SizeMin = sizeMin

	sizeMax, err := parseSizeParam(query.Get("size_max"), "size_max")
	if err != nil {
		return filter, err
	}
	filter.SizeMax = sizeMax

	after, err := parseTimeParam(query.Get("uploaded_after"), "uploaded_after", false)
	if err != nil {
		return filter, err
	}
	filter.UploadedAfter = after

	before, err := parseTimeParam(query.Get("uploaded_before"), "uploaded_before", true)
	if err != nil {
		return filter, err
	}
	filter.UploadedBefore = before

	limit, err := parseCountParam(query.Get("limit"), "limit")
	if err != nil {
		return filter, err
	}
	filter.Limit = limit

	offset, err := parseCountParam(query.Get("offset"), "offset")
	if err != nil {
		return filter, err
	}
	filter.Offset = offset

	return filter, nil
}

func parseSizeParam(raw, field string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, validationError(field, ErrCodeInvalidSizeFilter, fmt.Errorf("must be a valid integer"))
	}
	if parsed < 0 {
		return nil, validationError(field, ErrCodeInvalidSizeFilter, fmt.Errorf("must be >= 0"))
	}
	return &parsed, nil
}

// parseTimeParam accepts RFC3339 timestamps or bare dates. A bare date
// expands to the start of that day for lower bounds and the end of it
// for upper bounds, so date filters are inclusive on both sides.
func parseTimeParam(raw, field string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}

	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, validationError(field, ErrCodeInvalidTimeFilter, fmt.Errorf("must be a valid ISO 8601 date"))
	}
	t = t.UTC()
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseCountParam(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError(field, ErrCodeInvalidQuery, fmt.Errorf("must be a valid integer"))
	}
	if parsed < 0 {
		return 0, validationError(field, ErrCodeInvalidQuery, fmt.Errorf("must be >= 0"))
	}
	return parsed, nil
}
