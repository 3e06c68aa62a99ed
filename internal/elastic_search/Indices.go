package elastic_search

import (
	"fmt"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
)

type Indices string

var (
	ListingIndex Indices = "listing"
	OfferIndex   Indices = "offer"
	ActionIndex  Indices = "marketplaceaction"
)

// Sets the network and returns the full string
func (i Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(i))
}

func All() []Indices {
	return []Indices{ListingIndex, OfferIndex, ActionIndex}
}
