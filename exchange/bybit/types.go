package bybit

// subscribeRequest is the v5 public stream subscription frame.
type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// tradeMessage is a publicTrade frame. Frames without a topic (operation
// acknowledgements, pong replies) unmarshal with Topic empty and are
// dropped before adaptation.
type tradeMessage struct {
	Topic string       `json:"topic"`
	Type  string       `json:"type"`
	TS    int64        `json:"ts"`
	Data  []tradePrint `json:"data"`
}

// tradePrint is a single print inside a publicTrade batch.
type tradePrint struct {
	Timestamp int64  `json:"T"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Volume    string `json:"v"`
	Price     string `json:"p"`
	TradeID   string `json:"i"`
}

// instrumentsResponse is the v5 instruments-info catalog payload.
type instrumentsResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []instrument `json:"list"`
	} `json:"result"`
}

type instrument struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	QuoteCoin string `json:"quoteCoin"`
}
