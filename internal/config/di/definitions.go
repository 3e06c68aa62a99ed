package di

import (
	"fmt"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/api"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/chain"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/indexer"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/market"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/messenger"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/zrc2"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/zrc6"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

const eventQueueSize = 256

var Definitions = []di.Def{
	{
		Name: "chain",
		Build: func(ctn di.Container) (interface{}, error) {
			return NewChain(config.Get().Market)
		},
	},
	{
		Name: "event.manager",
		Build: func(ctn di.Container) (interface{}, error) {
			return event.NewManager(eventQueueSize), nil
		},
		Close: func(obj interface{}) error {
			obj.(*event.Manager).Close()
			return nil
		},
	},
	{
		Name: "market",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg, err := MarketConfig(config.Get().Market)
			if err != nil {
				return nil, err
			}
			return market.New(ctn.Get("chain").(*chain.Chain), cfg, ctn.Get("event.manager").(*event.Manager)), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get()
			server := api.NewServer(
				ctn.Get("chain").(*chain.Chain),
				ctn.Get("market").(*market.Market),
				api.NewIdempotencyCache(cfg.Api.IdempotencyTTL),
				cfg.Api.Faucet,
			)
			if cfg.ElasticSearch.Enabled {
				server.WithHistory(ctn.Get("action.repository").(repository.ActionRepository))
			}
			return server, nil
		},
	},
	{
		Name: "action.repository",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewActionRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
	{
		Name: "elastic",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, err := elastic_search.New()
			if err != nil {
				return nil, err
			}
			if err := elastic.InstallMappings(); err != nil {
				return nil, err
			}
			return elastic, nil
		},
	},
	{
		Name: "marketplace.indexer",
		Build: func(ctn di.Container) (interface{}, error) {
			return indexer.NewMarketplaceIndexer(ctn.Get("elastic").(elastic_search.Index)), nil
		},
		Close: func(obj interface{}) error {
			persisted := obj.(indexer.MarketplaceIndexer).Persist()
			zap.L().With(zap.Int("documents", persisted)).Info("MarketplaceIndexer: Flushed")
			return nil
		},
	},
	{
		Name: "messenger",
		Build: func(ctn di.Container) (interface{}, error) {
			return messenger.NewMessenger(config.Get().Amqp.Uri), nil
		},
		Close: func(obj interface{}) error {
			return obj.(messenger.MessageService).Close()
		},
	},
	{
		Name: "event.publisher",
		Build: func(ctn di.Container) (interface{}, error) {
			return messenger.NewEventPublisher(ctn.Get("messenger").(messenger.MessageService), config.Get().Amqp.Reliable), nil
		},
	},
}

func NewContainer() (di.Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}
	if err := builder.Add(Definitions...); err != nil {
		return nil, err
	}

	return builder.Build(), nil
}

// RegisterListeners attaches the configured sinks to the event manager.
func RegisterListeners(ctn di.Container) error {
	manager := ctn.Get("event.manager").(*event.Manager)
	cfg := config.Get()

	if cfg.ElasticSearch.Enabled {
		mi, err := ctn.SafeGet("marketplace.indexer")
		if err != nil {
			return fmt.Errorf("elasticsearch sink: %w", err)
		}
		manager.AddEventListener(event.AllEvents, mi.(indexer.MarketplaceIndexer).HandleEvent)
		zap.L().Info("Marketplace events are indexed to elasticsearch")
	}

	if cfg.Amqp.Enabled {
		publisher := ctn.Get("event.publisher").(*messenger.EventPublisher)
		manager.AddEventListener(event.AllEvents, publisher.PublishEvent)
		zap.L().Info("Marketplace events are published to amqp")
	}

	return nil
}

// MarketConfig resolves the configured addresses and ZIL amounts.
func MarketConfig(cfg config.MarketConfig) (market.Config, error) {
	address, err := entity.ParseAddress(cfg.Address)
	if err != nil {
		return market.Config{}, fmt.Errorf("market address %q: %w", cfg.Address, err)
	}
	admin, err := entity.ParseAddress(cfg.Admin)
	if err != nil {
		return market.Config{}, fmt.Errorf("market admin %q: %w", cfg.Admin, err)
	}
	listingFee, err := entity.ParseZil(cfg.ListingFee)
	if err != nil {
		return market.Config{}, fmt.Errorf("listing fee %q: %w", cfg.ListingFee, err)
	}
	acceptanceFee, err := entity.ParseZil(cfg.AcceptanceFee)
	if err != nil {
		return market.Config{}, fmt.Errorf("acceptance fee %q: %w", cfg.AcceptanceFee, err)
	}
	if cfg.OfferValidity <= 0 {
		return market.Config{}, fmt.Errorf("offer validity must be positive, got %s", cfg.OfferValidity)
	}

	mc := market.Config{
		Address:       address,
		Admin:         admin,
		ListingFee:    listingFee,
		AcceptanceFee: acceptanceFee,
		OfferValidity: cfg.OfferValidity,
	}
	if cfg.SettlementToken != "" {
		if mc.SettlementToken, err = entity.ParseAddress(cfg.SettlementToken); err != nil {
			return market.Config{}, fmt.Errorf("settlement token %q: %w", cfg.SettlementToken, err)
		}
	}

	return mc, nil
}

// NewChain builds the in-process chain with the configured settlement token
// and collections deployed.
func NewChain(cfg config.MarketConfig) (*chain.Chain, error) {
	c := chain.New(chain.SystemClock{})

	if cfg.SettlementToken != "" {
		addr, err := entity.ParseAddress(cfg.SettlementToken)
		if err != nil {
			return nil, fmt.Errorf("settlement token %q: %w", cfg.SettlementToken, err)
		}
		c.Deploy(addr, zrc2.NewToken(addr, "Wrapped ZIL", "WZIL", entity.ZilDecimals, c.Journal(), c.Ledger()))
	}

	for i, collection := range cfg.Collections {
		addr, err := entity.ParseAddress(collection)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", collection, err)
		}
		c.Deploy(addr, zrc6.NewCollection(addr, fmt.Sprintf("Collection %d", i+1), fmt.Sprintf("NFT%d", i+1), c.Journal()))
	}

	return c, nil
}
