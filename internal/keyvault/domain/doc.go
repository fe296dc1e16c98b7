// Package domain defines the server key model managed by the key vault.
//
// A server key is a 256-bit data key the server can use to decrypt attachments on behalf
// of a conversation or user. Only its wrapped form (encrypted under a master key) is
// persisted. Keys move through a single lifecycle:
//
//	nonexistent -> active -> inactive
//
// Inactive keys are retained for audit and never reactivated.
package domain
