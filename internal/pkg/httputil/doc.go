// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers in api, attribution and tracking write their JSON through these
// helpers so error envelopes and logging stay consistent across endpoints.
package httputil
