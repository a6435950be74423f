package api

import (
	"net/http"
	"strconv"
)

// parseLimit reads the limit query parameter, falling back to defaultLimit
// when it is missing or not a positive number and capping it at maxLimit.
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}
