// Package api serves the splicer HTTP API and provides a client for it.
//
// Routes under /api require a bearer token when one is configured.
// Every response carries an X-Request-ID header, and an inbound value is
// honoured. Errors are always {"error": "..."} with a status derived from
// the services error taxonomy: 422 for admission rejections, 400 for
// validation, 404 for missing jobs and 503 when the sandbox is unavailable.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds.
// Client shares the DTOs with the server and implements
// poller.StatusSource, so CLI commands can follow a job to completion.
package api
