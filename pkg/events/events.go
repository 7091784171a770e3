package events

import (
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the ledger and the asset registry
const (
	TypeOrderCreated   = "OrderCreated"
	TypeOrderCancelled = "OrderCancelled"
	TypeOrderExecuted  = "OrderExecuted"
	TypeAssetAdded     = "AssetAdded"
	TypeAssetRemoved   = "AssetRemoved"
)

// Event is a single ledger event. Seq is assigned by the journal sink
// when the event is persisted; zero until then.
type Event struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Order fields (order events only)
	OrderID         uint64 `json:"orderId,omitempty"`
	Creator         string `json:"creator,omitempty"`
	OfferedAsset    string `json:"offeredAsset,omitempty"`
	RequestedAsset  string `json:"requestedAsset,omitempty"`
	OfferedAmount   int64  `json:"offeredAmount,omitempty"`
	RequestedAmount int64  `json:"requestedAmount,omitempty"`
	Recipient       string `json:"recipient,omitempty"`

	// Asset fields (registry events only)
	Asset string `json:"asset,omitempty"`
}

// Sink receives emitted events. Emission is fire-and-forget: sinks must
// not fail the emitting operation, so Emit returns nothing.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// MultiSink fans every event out to all wired sinks in order
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// LogSink writes every event as a structured log line
type LogSink struct {
	Logger *zap.SugaredLogger
}

func (l LogSink) Emit(ev Event) {
	if l.Logger == nil {
		return
	}
	switch ev.Type {
	case TypeOrderCreated:
		l.Logger.Infow("event",
			"type", ev.Type, "order_id", ev.OrderID, "creator", ev.Creator,
			"offered_asset", ev.OfferedAsset, "requested_asset", ev.RequestedAsset,
			"offered_amount", ev.OfferedAmount, "requested_amount", ev.RequestedAmount)
	case TypeOrderExecuted:
		l.Logger.Infow("event", "type", ev.Type, "order_id", ev.OrderID, "recipient", ev.Recipient)
	case TypeOrderCancelled:
		l.Logger.Infow("event", "type", ev.Type, "order_id", ev.OrderID)
	default:
		l.Logger.Infow("event", "type", ev.Type, "asset", ev.Asset)
	}
}
