package shop

import "time"

// CacheKeyPrefix namespaces shop entries in the shared store. The read side
// builds keys with it and the write side evicts through it.
const CacheKeyPrefix = "cache:shop:"

// Shop is the hot read-mostly entity served through the cache engine.
type Shop struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	TypeID    uint64    `json:"typeId"`
	Address   string    `json:"address"`
	AvgPrice  int64     `json:"avgPrice"`
	Sold      int32     `json:"sold"`
	Comments  int32     `json:"comments"`
	Score     int32     `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
