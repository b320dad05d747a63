package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	transientHTTP = map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	transientGRPC = map[codes.Code]bool{
		codes.Aborted:           true,
		codes.DeadlineExceeded:  true,
		codes.Internal:          true,
		codes.ResourceExhausted: true,
		codes.Unavailable:       true,
	}
)

// transient reports whether retrying the insert can succeed. Aggregated
// insert errors are transient only when every inner error is.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allTransient(multi)
	}
	var perRow cbigquery.PutMultiError
	if errors.As(err, &perRow) {
		inner := make([]error, 0, len(perRow))
		for _, row := range perRow {
			inner = append(inner, row.Errors)
		}
		return allTransient(inner)
	}
	var row *cbigquery.RowInsertionError
	if errors.As(err, &row) {
		return allTransient(row.Errors)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return transientGRPC[st.Code()]
	}
	return false
}

func allTransient(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !transient(e) {
			return false
		}
	}
	return true
}
