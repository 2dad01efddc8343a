package store

import (
	"encoding/json"
	"fmt"

	"github.com/BatmanBruc/vip-orders-bot/types"
)

const pageSize = 100

func encodeRecord(subscriberID int64, rec *types.Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil record for subscriber %d", subscriberID)
	}
	rec.SubscriberID = subscriberID
	return json.Marshal(rec)
}

// decodeRecord ignores unknown fields so documents written by newer
// versions stay readable.
func decodeRecord(data []byte, version int64) (*types.Record, error) {
	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec.Version = version
	return &rec, nil
}
