// Package protocol owns the RORI wire contract.
//
// Ownership boundary:
// - message record and its quoted-field text encoding
// - one-message-per-connection framed reads
// - registration payload helpers
//
// A connection carries exactly one message; the message ends when the peer
// closes its write side. There is no length prefix and no checksum.
package protocol
