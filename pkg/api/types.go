package api

// API request/response types for REST endpoints

// ==============================
// Requests
// ==============================

// The caller identity is an explicit field in every mutating request;
// there is no session or implicit current-user context.

// CreateOrderRequest posts a new exchange intent
type CreateOrderRequest struct {
	Caller          string `json:"caller"`          // Hex address of the creator
	OfferedAsset    string `json:"offeredAsset"`    // Hex asset id
	RequestedAsset  string `json:"requestedAsset"`  // Hex asset id
	OfferedAmount   int64  `json:"offeredAmount"`   // Smallest-denomination units
	RequestedAmount int64  `json:"requestedAmount"` // Smallest-denomination units
}

// CancelOrderRequest cancels a caller-owned order
type CancelOrderRequest struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

// ExecuteOrderRequest fills an order as counterparty
type ExecuteOrderRequest struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

// AssetRequest adds or removes an allow-list entry (admin)
type AssetRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
}

// RestrictionRequest flips admission enforcement (admin)
type RestrictionRequest struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

// EngineRequest registers the settlement-engine identity (admin)
type EngineRequest struct {
	Caller string `json:"caller"`
	Engine string `json:"engine"`
}

// ==============================
// Responses
// ==============================

// OrderInfo represents an order (active or retired)
type OrderInfo struct {
	ID              uint64 `json:"id"`
	Creator         string `json:"creator"`
	OfferedAsset    string `json:"offeredAsset"`
	RequestedAsset  string `json:"requestedAsset"`
	OfferedAmount   int64  `json:"offeredAmount"`
	RequestedAmount int64  `json:"requestedAmount"`
	Active          bool   `json:"active"`
	CreatedAt       int64  `json:"createdAt"` // Unix milliseconds
	UpdatedAt       int64  `json:"updatedAt"`
}

// AssetInfo represents a registered token and its admission status
type AssetInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Admitted bool   `json:"admitted"`
}

// BalanceInfo represents one holder's balance in one asset
type BalanceInfo struct {
	Asset   string `json:"asset"`
	Symbol  string `json:"symbol"`
	Balance int64  `json:"balance"`
}

// CreateOrderResponse returns the assigned order id
type CreateOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// CountResponse returns the total number of orders ever created
type CountResponse struct {
	Count uint64 `json:"count"`
}

// StatusResponse reports node status for the health endpoint
type StatusResponse struct {
	Status      string `json:"status"`
	OrderCount  uint64 `json:"orderCount"`
	Restriction bool   `json:"restriction"`
	Engine      string `json:"engine"`
}

// ErrorResponse carries a machine-readable error string
type ErrorResponse struct {
	Error string `json:"error"`
}
