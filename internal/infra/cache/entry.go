package cache

import (
	"encoding/json"
	"time"
)

// entry is the logical-expiry encoding: the payload plus an application-level
// staleness timestamp, independent of the store's own TTL.
type entry struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expireAt"`
}
