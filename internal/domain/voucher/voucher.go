package voucher

import "time"

// Voucher is a limited-stock flash-sale voucher. The authoritative stock lives
// on this record; the admission script keeps a mirror counter in the shared
// store that is seeded when the sale is published.
type Voucher struct {
	ID        uint64    `json:"id"`
	ShopID    uint64    `json:"shopId"`
	Title     string    `json:"title"`
	Stock     int32     `json:"stock"`
	BeginTime time.Time `json:"beginTime"`
	EndTime   time.Time `json:"endTime"`
}

// OrderIntent is the admission record appended to the order log. It carries
// everything the consumer needs to persist the order.
type OrderIntent struct {
	OrderID   uint64 `json:"id"`
	VoucherID uint64 `json:"voucherId"`
	UserID    uint64 `json:"userId"`
}

// Order is the persisted voucher order. At most one exists per
// (UserID, VoucherID) pair.
type Order struct {
	ID        uint64    `json:"id"`
	VoucherID uint64    `json:"voucherId"`
	UserID    uint64    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
