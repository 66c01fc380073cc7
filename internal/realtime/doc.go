// Package realtime pushes committed changes to connected clients.
//
// A Registry owns every live Session and the room membership table. Rooms are
// not modelled on their own: a room is a map entry from room id to the set of
// joined session ids, created on first join and pruned lazily once empty.
// Each session has a bounded FIFO outbox and broadcasts enqueue while holding
// the registry lock, so a session receives a room's messages in the order
// Broadcast was called.
//
// The Gateway serves the websocket endpoint and the Notifier turns
// application changes into events for the owner and team rooms.
package realtime
