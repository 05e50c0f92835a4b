package exchange

import "github.com/samber/lo"

// ShardSize is the number of symbols carried by one streaming connection,
// driven by exchange subscription-message size limits.
const ShardSize = 50

// MaxReconnectAttempts caps reconnects per connection lifetime. A shard
// that exhausts the budget stays offline until the next resubscribe.
const MaxReconnectAttempts = 5

// SplitShards partitions symbols into connection-sized groups.
func SplitShards(symbols []string) [][]string {
	return lo.Chunk(symbols, ShardSize)
}
