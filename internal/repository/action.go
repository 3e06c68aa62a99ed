package repository

import (
	"context"
	"encoding/json"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

const maxPageSize = 100

// ActionRepository reads the marketplace history written by the indexer.
type ActionRepository interface {
	GetActionsForNft(ctx context.Context, contract common.Address, tokenId uint64, from, size int) ([]entity.MarketplaceAction, int64, error)
	GetActionsForAccount(ctx context.Context, address common.Address, from, size int) ([]entity.MarketplaceAction, int64, error)
}

type actionRepository struct {
	elastic elastic_search.Index
}

func NewActionRepository(elastic elastic_search.Index) ActionRepository {
	return actionRepository{elastic}
}

func (r actionRepository) GetActionsForNft(ctx context.Context, contract common.Address, tokenId uint64, from, size int) ([]entity.MarketplaceAction, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract.keyword", entity.LowerHex(contract)),
		elastic.NewTermQuery("tokenId", tokenId),
	)

	return r.findMany(ctx, query, from, size)
}

func (r actionRepository) GetActionsForAccount(ctx context.Context, address common.Address, from, size int) ([]entity.MarketplaceAction, int64, error) {
	hex := entity.LowerHex(address)
	query := elastic.NewBoolQuery().Should(
		elastic.NewTermQuery("from.keyword", hex),
		elastic.NewTermQuery("to.keyword", hex),
	).MinimumNumberShouldMatch(1)

	return r.findMany(ctx, query, from, size)
}

func (r actionRepository) findMany(ctx context.Context, query elastic.Query, from, size int) ([]entity.MarketplaceAction, int64, error) {
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	if from < 0 {
		from = 0
	}

	results, err := search(ctx, r.elastic.GetClient().
		Search(elastic_search.ActionIndex.Get()).
		Query(query).
		Sort("time", false).
		From(from).
		Size(size).
		TrackTotalHits(true))
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ActionRepository: Search failed")
		return nil, 0, err
	}

	actions := make([]entity.MarketplaceAction, 0, len(results.Hits.Hits))
	for _, hit := range results.Hits.Hits {
		var action entity.MarketplaceAction
		if err := json.Unmarshal(hit.Source, &action); err != nil {
			zap.L().With(zap.Error(err), zap.String("id", hit.Id)).Error("ActionRepository: Failed to unpack action")
			continue
		}
		actions = append(actions, action)
	}

	return actions, results.TotalHits(), nil
}
