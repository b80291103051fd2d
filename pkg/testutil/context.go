package testutil

import (
	"net/http"
	"time"

	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// WithAdminSession stamps the request context the way the session middleware
// would for an authenticated back-office request.
func WithAdminSession(req *http.Request, adminID id.AdminID) *http.Request {
	ctx := requestcontext.WithAdminID(req.Context(), adminID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, so assertions on timestamps
// are deterministic.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}
