package marketdata

import (
	"strings"

	"github.com/onchain-exchange/matching-core/internal/orderbook"
	"github.com/onchain-exchange/matching-core/internal/types"
)

// level is the wire representation of a single price level: [price, quantity].
type level [2]string

// Snapshot is the top-of-book payload published after every book mutation
// (spec §4.4).
type Snapshot struct {
	Symbol string  `json:"symbol"`
	Bids   []level `json:"bids"`
	Asks   []level `json:"asks"`
}

const depth = 10

// BuildSnapshot reads the top 10 aggregated price levels on each side of
// book and assembles the publish payload.
func BuildSnapshot(symbol string, book *orderbook.Book) Snapshot {
	return Snapshot{
		Symbol: symbol,
		Bids:   toLevels(book.TopN(types.SideBuy, depth)),
		Asks:   toLevels(book.TopN(types.SideSell, depth)),
	}
}

func toLevels(levels []orderbook.Level) []level {
	out := make([]level, 0, len(levels))
	for _, l := range levels {
		out = append(out, level{l.Price.String(), l.Quantity.String()})
	}
	return out
}

// normalizeSymbol lowercases the symbol and strips its slash, producing the
// routing-key suffix named in spec §4.4 ("orderbook.<normalized-symbol>").
func normalizeSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}
