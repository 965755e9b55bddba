package badger

import "fmt"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize different
// data types into logical namespaces. This design:
//   - Prevents key collisions between different data types
//   - Enables efficient range scans (oldest-first candidate selection)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Data Type        Prefix  Key Format                      Value Type
// =====================================================================
// Record Data      "r:"    r:<recordID>                    ContentRecord (JSON)
// Creation Index   "t:"    t:<unixNano 20-digit>:<recordID>  recordID (bytes)
//
// Key Design Rationale:
//
// 1. Record Data (r:)
//    - One entry per catalog record, point lookup by ID: O(1)
//    - Example: r:vid_8f3a91
//
// 2. Creation Index (t:)
//    - Zero-padded big-endian-sortable nanosecond timestamp, so a plain
//      ascending prefix scan yields records oldest-first and the query's
//      server-side time bound becomes an early scan termination instead
//      of a full-table filter.
//    - The record ID suffix disambiguates identical timestamps.
//    - Example: t:01756400000000000000:vid_8f3a91

const (
	// prefixRecord is the key prefix for record data
	prefixRecord = "r:"

	// prefixCreated is the key prefix for the creation-time index
	prefixCreated = "t:"
)

// keyRecord generates a key for record data.
func keyRecord(id string) []byte {
	return []byte(prefixRecord + id)
}

// keyCreated generates a creation-index key for a record.
//
// The timestamp is formatted as a fixed-width decimal so lexicographic key
// order equals chronological order.
func keyCreated(unixNano int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixCreated, unixNano, id))
}

// keyCreatedBound generates the exclusive upper bound for a creation-index
// scan: all index keys before this one belong to records created before the
// given instant.
func keyCreatedBound(unixNano int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCreated, unixNano))
}
