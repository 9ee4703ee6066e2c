package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/upb/faq-rag/services"
)

const storeName = "postgres"

// classifyError maps driver errors onto the store error taxonomy:
// connection-level failures become store-unavailable, the rest internal.
func classifyError(message string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectionError(err) {
		return services.NewStoreUnavailableError(storeName, err)
	}
	return services.WrapInternal(message, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception, 57P: operator intervention (shutdown)
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
	}

	return false
}
