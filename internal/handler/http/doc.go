// Package http implements the HTTP transport layer of the sync server.
// It provides middleware, route handlers, and request/response utilities
// for the REST API and the websocket upgrade endpoint. Authentication,
// logging, tracing, rate limiting, and webhook signature verification are
// all handled at this layer before requests reach the service layer.
package http
