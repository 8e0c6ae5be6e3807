// Package pricefeed is a WebSocket price source. Client implements the
// valuation source interfaces against a remote feed and Server exposes local
// sources over the same protocol.
package pricefeed

const (
	TypePriceReq  = "PRICE_REQ"
	TypePrice     = "PRICE"
	TypeSupplyReq = "SUPPLY_REQ"
	TypeSupply    = "SUPPLY"
	TypeError     = "ERROR"
)

// Error codes carried in a failed response.
const (
	CodeNoData   = "no_data"
	CodeBadReq   = "bad_request"
	CodeInternal = "internal"
)

// Message is every frame on the wire. Responses echo the request id.
type Message struct {
	Type     string             `json:"type"`
	ID       string             `json:"id"`
	KindID   string             `json:"kind_id,omitempty"`
	TraderID string             `json:"trader_id,omitempty"`
	OK       bool               `json:"ok"`
	Min      *float64           `json:"min,omitempty"`
	Prices   map[string]float64 `json:"prices,omitempty"`
	Error    string             `json:"error,omitempty"`
}
