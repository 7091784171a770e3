package escrow

import "fmt"

// Pebble key schema for the order table and event journal
// Design principles:
// 1. Zero-padded numeric components so lexicographic order == numeric order
// 2. Prefix-based for range scans (replay all orders / recent events)
// 3. Counters under a meta prefix, separate from row data

const (
	prefixOrder = "ord:" // Order rows
	prefixEvent = "evt:" // Event journal entries

	keyOrderSeq = "meta:order_seq" // Last assigned order id
	keyEventSeq = "meta:event_seq" // Last assigned event sequence
	keyEngine   = "meta:engine"    // Registered settlement-engine identity
	keyRestrict = "meta:restrict"  // Asset-admission enforcement flag
)

// orderKey returns the key for an order row
// Format: "ord:{id zero-padded to 20 digits}"
// Example: "ord:00000000000000000042"
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// eventKey returns the key for a journal entry
// Format: "evt:{seq zero-padded to 20 digits}"
func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEvent, seq))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
