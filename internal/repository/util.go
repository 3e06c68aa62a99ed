package repository

import (
	"context"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

const searchRetries = 3

var throttleDelay = 5 * time.Second

func search(ctx context.Context, searchService *elastic.SearchService) (*elastic.SearchResult, error) {
	result, err := searchService.Do(ctx)
	for attempt := 1; attempt <= searchRetries && elastic.IsStatusCode(err, http.StatusTooManyRequests); attempt++ {
		zap.L().With(zap.Int("attempt", attempt)).Warn("Elastic: 429 (Too Many Requests)")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(throttleDelay):
		}
		result, err = searchService.Do(ctx)
	}

	return result, err
}
