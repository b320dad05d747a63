package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

const dateLayout = "2006-01-02"

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt returns def when key is absent and rejects values outside [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "query parameter must be numeric", nil)
	}
	if n < min || n > max {
		return 0, invalidQuery(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return n, nil
}

// ParseUUIDParam reads a required chi path parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParsePagination reads limit and cursor.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: queryValue(r, "cursor"),
	}, nil
}

// ParseQueryOrderStatus returns nil when the status filter is absent.
func ParseQueryOrderStatus(r *http.Request, key string) (*enums.OrderStatus, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": key})
	}
	return &status, nil
}

// ParseQueryBool returns nil when the flag is absent.
func ParseQueryBool(r *http.Request, key string) (*bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalidQuery(key, "query parameter must be a boolean", nil)
	}
	return &value, nil
}

// ParseQueryTime accepts RFC3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func ParseQueryTime(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, invalidQuery(key, "query parameter must be a date or RFC3339 timestamp", nil)
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
