// Package transport owns TCP and TLS plumbing for RORI messages.
//
// Ownership boundary:
// - outbound fire-and-forget client (one connection per message)
// - listener construction for endpoint servers
// - tls settings and their validation
//
// Nothing here retries. A failed dial or write is logged and returned once.
package transport
