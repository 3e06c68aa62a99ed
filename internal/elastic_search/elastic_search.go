package elastic_search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"github.com/sha1sum/aws_signing_client"
	"go.uber.org/zap"
)

type Index interface {
	GetClient() *elastic.Client
	InstallMappings() error

	AddIndexRequest(index string, entity entity.Entity)
	GetRequests() []Request
	GetRequest(id string) *Request
	ClearRequests()

	BatchPersist() bool
	Persist() int
}

type index struct {
	client    *elastic.Client
	cache     *cache.Cache
	refresh   string
	batchSize int
}

type Request struct {
	Index  string
	Entity entity.Entity
}

var ErrNoHosts = errors.New("no elasticsearch hosts configured")

const batchThreshold = 250

func New() (Index, error) {
	client, err := newClient()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticSearch: Failed to create client")
		return nil, err
	}

	return &index{
		client:    client,
		cache:     cache.New(cache.NoExpiration, 10*time.Minute),
		refresh:   config.Get().ElasticSearch.Refresh,
		batchSize: config.Get().ElasticSearch.BulkPersistCount,
	}, nil
}

func newClient() (*elastic.Client, error) {
	cfg := config.Get()
	if len(cfg.ElasticSearch.Hosts) == 0 {
		return nil, ErrNoHosts
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(strings.Join(cfg.ElasticSearch.Hosts, ",")),
		elastic.SetSniff(cfg.ElasticSearch.Sniff),
		elastic.SetHealthcheck(cfg.ElasticSearch.HealthCheck),
	}

	if cfg.ElasticSearch.Debug {
		opts = append(opts, elastic.SetTraceLog(ElasticLogger{}))
	}

	if cfg.ElasticSearch.Aws {
		creds := credentials.NewStaticCredentials(cfg.Aws.AccessKey, cfg.Aws.SecretKey, cfg.Aws.Token)
		awsClient, err := aws_signing_client.New(v4.NewSigner(creds), nil, "es", cfg.Aws.Region)
		if err != nil {
			return nil, err
		}

		opts = append(opts, elastic.SetHttpClient(awsClient))
		opts = append(opts, elastic.SetScheme("https"))
		return elastic.NewClient(opts...)
	}

	if cfg.ElasticSearch.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.ElasticSearch.Username, cfg.ElasticSearch.Password))
	}

	return elastic.NewClient(opts...)
}

func (i *index) GetClient() *elastic.Client {
	return i.client
}

// InstallMappings creates every index that does not exist yet, using
// <name>.json from the mapping directory when one is present.
func (i *index) InstallMappings() error {
	zap.L().Info("ElasticSearch: Install Mappings")
	mappingDir := config.Get().ElasticSearch.MappingDir

	for _, idx := range All() {
		mapping := ""
		if mappingDir != "" {
			b, err := os.ReadFile(filepath.Join(mappingDir, fmt.Sprintf("%s.json", idx)))
			if err != nil && !os.IsNotExist(err) {
				zap.L().With(zap.Error(err), zap.String("index", string(idx))).Error("ElasticSearch: Elastic mappings file error")
				return err
			}
			mapping = string(b)
		}

		if err := i.createIndex(idx.Get(), mapping); err != nil {
			zap.L().With(zap.Error(err), zap.String("index", idx.Get())).Error("ElasticSearch: Failed to create index")
			return err
		}
	}

	return nil
}

func (i *index) createIndex(index string, mapping string) error {
	ctx := context.Background()

	exists, err := i.client.IndexExists(index).Do(ctx)
	if err != nil || exists {
		return err
	}

	create := i.client.CreateIndex(index)
	if mapping != "" {
		create = create.BodyString(mapping)
	}
	result, err := create.Do(ctx)
	if err != nil {
		return err
	}
	if result.Acknowledged {
		zap.S().Infof("ElasticSearch: Created index %s", index)
	}

	return nil
}

// AddIndexRequest buffers a document. A later request for the same slug
// replaces the buffered one.
func (i *index) AddIndexRequest(index string, entity entity.Entity) {
	zap.L().With(zap.String("index", index), zap.String("slug", entity.Slug())).Debug("ElasticSearch: AddIndexRequest")

	i.cache.Set(requestKey(index, entity.Slug()), Request{index, entity}, cache.NoExpiration)
}

func (i *index) GetRequests() []Request {
	requests := make([]Request, 0)
	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i *index) GetRequest(id string) *Request {
	for _, req := range i.GetRequests() {
		if req.Entity.Slug() == id {
			return &req
		}
	}

	return nil
}

func (i *index) ClearRequests() {
	i.cache.Flush()
}

func (i *index) BatchPersist() bool {
	if i.cache.ItemCount() < batchThreshold {
		return false
	}

	actions := i.cache.ItemCount()
	start := time.Now()
	i.Persist()

	zap.L().With(zap.Duration("elapsed", time.Since(start)), zap.Int("actions", actions)).Info("ElasticSearch: Persisting data")

	return true
}

func (i *index) Persist() int {
	requests := i.GetRequests()
	if len(requests) == 0 {
		return 0
	}

	persisted := 0
	bulk := i.client.Bulk()
	for _, r := range requests {
		bulk.Add(elastic.NewBulkIndexRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))

		if bulk.NumberOfActions() >= i.batchSize {
			persisted += i.persist(bulk)
			bulk = i.client.Bulk()
		}
	}
	if bulk.NumberOfActions() != 0 {
		persisted += i.persist(bulk)
	}

	return persisted
}

func (i *index) persist(bulk *elastic.BulkService) int {
	actions := bulk.NumberOfActions()
	zap.S().Debugf("ElasticSearch: Persisting %d actions", actions)

	response, err := bulk.Refresh(i.refresh).Do(context.Background())
	if err != nil {
		time.Sleep(1 * time.Second)
		response, err = bulk.Refresh(i.refresh).Do(context.Background())
		if err != nil {
			zap.L().With(zap.Error(err)).Error("ElasticSearch: Failed to persist requests")
			return 0
		}
	}

	for _, item := range response.Succeeded() {
		i.cache.Delete(requestKey(item.Index, item.Id))
	}
	for _, failed := range response.Failed() {
		zap.L().With(
			zap.Any("error", failed.Error),
			zap.String("index", failed.Index),
			zap.String("id", failed.Id),
		).Error("ElasticSearch: Failed to persist request. Retrying on next persist")
	}

	return len(response.Succeeded())
}

func requestKey(index, slug string) string {
	return index + "/" + slug
}

type ElasticLogger struct{}

func (ElasticLogger) Printf(format string, v ...interface{}) {
	zap.S().Debugf(format, v...)
}
