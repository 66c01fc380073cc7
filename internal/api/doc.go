// Package api defines the JSON wire types shared by the HTTP handlers, the
// realtime gateway and the Go client: resource DTOs, the response envelope
// and the realtime message frame.
package api
