// Package endpoint owns the satellite side of the relay.
//
// Ownership boundary:
// - inbound queue shared with the external consumer
// - sequential accept loop that turns connections into queued text
// - registration of the endpoint with the hub
//
// Lifecycle order:
// - listen -> register -> serve
//
// The accept loop handles one connection at a time; a peer that never
// closes its stream holds the loop until the read deadline, if any, fires.
package endpoint
