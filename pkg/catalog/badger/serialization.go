package badger

import (
	"encoding/json"
	"fmt"

	"github.com/mediasweep/mediasweep/pkg/catalog"
)

// Serialization Strategy
// ======================
//
// Records are stored as JSON. The catalog is written by humans' tooling as
// much as by the engine (support staff inspect rows when a purge is disputed),
// so debuggability wins over the size and speed of a binary encoding. Index
// values are raw ID bytes since they never need inspection on their own.

// encodeRecord serializes a record for storage.
func encodeRecord(rec *catalog.ContentRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

// decodeRecord deserializes a stored record.
func decodeRecord(data []byte) (*catalog.ContentRecord, error) {
	var rec catalog.ContentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}
