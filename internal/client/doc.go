// Package client is the Go client of the todo service. It keeps a local
// cache of todos that merges optimistic edits with pushed realtime events,
// talks to the REST endpoints and maintains the websocket connection.
package client
