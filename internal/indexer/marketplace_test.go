package indexer

import (
	"math/big"
	"testing"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ducks = common.HexToAddress("0x00000000000000000000000000000000000c0de6")
	wzil  = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	at    = time.Date(2022, time.March, 1, 12, 0, 0, 0, time.UTC)
)

type memoryIndex struct {
	requests map[string]elastic_search.Request
	batches  int
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{requests: make(map[string]elastic_search.Request)}
}

func (m *memoryIndex) GetClient() *elastic.Client { return nil }

func (m *memoryIndex) InstallMappings() error { return nil }

func (m *memoryIndex) AddIndexRequest(index string, e entity.Entity) {
	m.requests[index+"/"+e.Slug()] = elastic_search.Request{Index: index, Entity: e}
}

func (m *memoryIndex) GetRequests() []elastic_search.Request {
	requests := make([]elastic_search.Request, 0)
	for _, r := range m.requests {
		requests = append(requests, r)
	}
	return requests
}

func (m *memoryIndex) GetRequest(id string) *elastic_search.Request {
	for _, r := range m.requests {
		if r.Entity.Slug() == id {
			return &r
		}
	}
	return nil
}

func (m *memoryIndex) ClearRequests() { m.requests = make(map[string]elastic_search.Request) }

func (m *memoryIndex) BatchPersist() bool {
	m.batches++
	return false
}

func (m *memoryIndex) Persist() int {
	n := len(m.requests)
	m.ClearRequests()
	return n
}

func (m *memoryIndex) entities(index elastic_search.Indices) []entity.Entity {
	entities := make([]entity.Entity, 0)
	for _, r := range m.requests {
		if r.Index == index.Get() {
			entities = append(entities, r.Entity)
		}
	}
	return entities
}

func TestIndexListingThenSale(t *testing.T) {
	es := newMemoryIndex()
	i := NewMarketplaceIndexer(es)

	i.HandleEvent(event.Event{Type: event.ListedEvent, TxID: "tx-1", Time: at, Payload: event.Listed{
		ListingId: 1, Seller: alice, Contract: ducks, TokenId: 7, Price: big.NewInt(50),
	}})
	i.HandleEvent(event.Event{Type: event.SaleEvent, TxID: "tx-2", Time: at, Payload: event.Sale{
		ListingId: 1, Seller: alice, Buyer: bob, Contract: ducks, TokenId: 7, Price: big.NewInt(50),
	}})

	listings := es.entities(elastic_search.ListingIndex)
	require.Len(t, listings, 1)
	listing := listings[0].(entity.Listing)
	assert.True(t, listing.IsSold)
	assert.Equal(t, "tx-1", listing.TxID)
	assert.Equal(t, big.NewInt(50), listing.Price)

	actions := es.entities(elastic_search.ActionIndex)
	require.Len(t, actions, 2)
	types := []entity.ActionType{actions[0].(entity.MarketplaceAction).Action, actions[1].(entity.MarketplaceAction).Action}
	assert.ElementsMatch(t, []entity.ActionType{entity.MarketplaceListingAction, entity.MarketplaceSaleAction}, types)
	assert.Equal(t, 2, es.batches)
}

func TestIndexAcceptedOfferClosesListing(t *testing.T) {
	es := newMemoryIndex()
	i := NewMarketplaceIndexer(es)

	i.HandleEvent(event.Event{Type: event.ListedEvent, TxID: "tx-1", Time: at, Payload: event.Listed{
		ListingId: 1, Seller: alice, Contract: ducks, TokenId: 7, Price: big.NewInt(50),
	}})
	i.HandleEvent(event.Event{Type: event.OfferMadeEvent, TxID: "tx-2", Time: at, Payload: event.OfferMade{
		OfferId: 1, Offerer: bob, Contract: ducks, TokenId: 7, Token: wzil, Price: big.NewInt(4),
	}})
	assert.Equal(t, 4, i.Persist())

	i.HandleEvent(event.Event{Type: event.OfferAcceptedEvent, TxID: "tx-3", Time: at, Payload: event.OfferAccepted{
		OfferId: 1, Offerer: bob, Seller: alice, Contract: ducks, TokenId: 7, Token: wzil, Price: big.NewInt(4), ListingId: 1,
	}})

	offers := es.entities(elastic_search.OfferIndex)
	require.Len(t, offers, 1)
	offer := offers[0].(entity.Offer)
	assert.True(t, offer.IsAccepted)
	assert.Equal(t, wzil, offer.Token)
	assert.Equal(t, at, offer.CreatedAt)

	listings := es.entities(elastic_search.ListingIndex)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].(entity.Listing).IsSold)
}

func TestIndexIgnoresConfigurationEvents(t *testing.T) {
	es := newMemoryIndex()
	i := NewMarketplaceIndexer(es)

	i.HandleEvent(event.Event{Type: event.SettlementTokenUpdatedEvent, Payload: event.SettlementTokenUpdated{Current: wzil}})

	assert.Empty(t, es.GetRequests())
	assert.Equal(t, 0, es.batches)
}

func TestTerminalRecordsAreNotRetained(t *testing.T) {
	es := newMemoryIndex()
	i := NewMarketplaceIndexer(es).(*marketplaceIndexer)

	i.HandleEvent(event.Event{Type: event.ListedEvent, TxID: "tx-1", Time: at, Payload: event.Listed{
		ListingId: 1, Seller: alice, Contract: ducks, TokenId: 7, Price: big.NewInt(50),
	}})
	i.HandleEvent(event.Event{Type: event.ListedEvent, TxID: "tx-2", Time: at, Payload: event.Listed{
		ListingId: 2, Seller: alice, Contract: ducks, TokenId: 8, Price: big.NewInt(60),
	}})
	i.HandleEvent(event.Event{Type: event.OfferMadeEvent, TxID: "tx-3", Time: at, Payload: event.OfferMade{
		OfferId: 1, Offerer: bob, Contract: ducks, TokenId: 7, Token: wzil, Price: big.NewInt(4),
	}})
	require.Len(t, i.listings, 2)
	require.Len(t, i.offers, 1)

	i.HandleEvent(event.Event{Type: event.ListingCancelledEvent, TxID: "tx-4", Time: at, Payload: event.ListingCancelled{
		ListingId: 2, Seller: alice, Contract: ducks, TokenId: 8,
	}})
	i.HandleEvent(event.Event{Type: event.OfferCancelledEvent, TxID: "tx-5", Time: at, Payload: event.OfferCancelled{
		OfferId: 1, Offerer: bob,
	}})

	assert.Len(t, i.listings, 1)
	assert.Contains(t, i.listings, uint64(1))
	assert.Empty(t, i.offers)

	cancelled := make(map[string]entity.Offer)
	for _, e := range es.entities(elastic_search.OfferIndex) {
		cancelled[e.Slug()] = e.(entity.Offer)
	}
	offer := cancelled[entity.CreateOfferSlug(1)]
	assert.True(t, offer.IsCancelled)
	assert.Equal(t, ducks, offer.Contract)
	assert.Equal(t, wzil, offer.Token)
}
