package model

// LegKind identifies one side of a multi-leg order.
type LegKind string

const (
	LegCall LegKind = "CALL"
	LegPut  LegKind = "PUT"
)

// Transaction types accepted by the broker order API.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// Order parameters fixed for this engine: market orders, carry-forward
// product (overnight option positions), normal variety.
const (
	OrderTypeMarket   = "MARKET"
	ProductCarryForwd = "CARRYFORWARD"
	ProductIntraday   = "INTRADAY"
	VarietyNormal     = "NORMAL"
	DurationDay       = "DAY"
)

// Leg is one resolved side of a multi-leg order, ready to place.
type Leg struct {
	Kind            LegKind    `json:"kind"`
	Instrument      Instrument `json:"instrument"`
	TransactionType string     `json:"transaction_type"` // BUY, SELL
	ProductType     string     `json:"product_type"`     // INTRADAY, CARRYFORWARD
}

// BatchStatus is the state machine of one order batch:
// PENDING → IN_FLIGHT → {COMPLETE | PARTIAL | FAILED}. Terminal states are
// never revisited and batches are never retried.
type BatchStatus string

const (
	BatchPending  BatchStatus = "PENDING"
	BatchInFlight BatchStatus = "IN_FLIGHT"
	BatchComplete BatchStatus = "COMPLETE"
	BatchPartial  BatchStatus = "PARTIAL"
	BatchFailed   BatchStatus = "FAILED"
)

// LegResult is the outcome of placing one leg of one batch. Broker
// rejections and network failures both land here; Network distinguishes
// them for diagnosis, aggregation treats them the same.
type LegResult struct {
	Kind         LegKind `json:"kind"`
	BatchIndex   int     `json:"batch_index"`
	Quantity     int64   `json:"quantity"`
	OrderID      string  `json:"order_id,omitempty"`
	Success      bool    `json:"success"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Network      bool    `json:"network,omitempty"`
}

// OrderBatch is one broker-compliant slice of the total quantity. Both leg
// results are recorded before the batch goes terminal.
type OrderBatch struct {
	Index    int         `json:"index"` // 1-based
	Lots     int         `json:"lots"`
	Quantity int64       `json:"quantity"` // lots × lot size
	Status   BatchStatus `json:"status"`
	Results  []LegResult `json:"results"`
}

// Finalize records the leg results and moves the batch to its terminal
// state based on how many legs succeeded.
func (b *OrderBatch) Finalize(results []LegResult) {
	b.Results = results
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	switch {
	case ok == len(results) && ok > 0:
		b.Status = BatchComplete
	case ok == 0:
		b.Status = BatchFailed
	default:
		b.Status = BatchPartial
	}
}
