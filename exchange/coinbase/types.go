package coinbase

// subscribeRequest is the websocket feed subscription frame. The heartbeat
// channel keeps the connection from idling out between matches.
type subscribeRequest struct {
	Type     string    `json:"type"`
	Channels []channel `json:"channels"`
}

type channel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// feedMessage is any inbound frame. Only match frames carry trades;
// heartbeats, subscription acks and errors are dropped at the adapter.
type feedMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Time      string `json:"time"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
}

// product is one entry of the REST product catalog.
type product struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}
