package bus

import (
	"sort"

	"hftsim/internal/types"
)

type entry struct {
	order  types.Order
	recvTs int64
}

// OrderBus carries order messages between the local and exchange
// processors, ordered by delivery timestamp. Messages with equal
// delivery timestamps keep their append order.
type OrderBus struct {
	entries []entry
}

// NewOrderBus creates an empty bus.
func NewOrderBus() *OrderBus {
	return &OrderBus{}
}

// Append schedules an order for delivery at recvTs. The latency model can
// produce deliveries that are not monotonic in append order, so the bus
// keeps its entries sorted.
func (b *OrderBus) Append(order types.Order, recvTs int64) {
	e := entry{order: order, recvTs: recvTs}
	n := len(b.entries)
	if n == 0 || b.entries[n-1].recvTs <= recvTs {
		b.entries = append(b.entries, e)
		return
	}
	pos := sort.Search(n, func(i int) bool { return b.entries[i].recvTs > recvTs })
	b.entries = append(b.entries, entry{})
	copy(b.entries[pos+1:], b.entries[pos:])
	b.entries[pos] = e
}

// EarliestTimestamp returns the next delivery timestamp.
func (b *OrderBus) EarliestTimestamp() (int64, bool) {
	if len(b.entries) == 0 {
		return 0, false
	}
	return b.entries[0].recvTs, true
}

// PopFront removes and returns the earliest message.
func (b *OrderBus) PopFront() (types.Order, int64, bool) {
	if len(b.entries) == 0 {
		return types.Order{}, 0, false
	}
	e := b.entries[0]
	b.entries = b.entries[1:]
	return e.order, e.recvTs, true
}

// Len returns the number of undelivered messages.
func (b *OrderBus) Len() int {
	return len(b.entries)
}
