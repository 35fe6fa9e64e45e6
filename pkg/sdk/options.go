package numistr

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dsn      string
	maxConns int32

	redisAddrs    []string
	redisPassword string
	keyPrefix     string

	rootCategoryID int64
	safeCap        int64
	imageRoot      string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres sets the catalog database DSN. Required.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dsn = dsn
	})
}

// WithMaxConns bounds the database pool. Default: 4.
func WithMaxConns(n int32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConns = n
	})
}

// WithRedis enables the aggregate payload cache on a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	})
}

// WithKeyPrefix sets the prefix of every cache key. Default: "numistr:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithRootCategory sets the category whose published subtree is visible. Default: 16.
func WithRootCategory(id int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.rootCategoryID = id
	})
}

// WithSafeCap sets the listing total above which a narrowing filter is required. Default: 2000.
func WithSafeCap(n int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.safeCap = n
	})
}

// WithImageRoot sets the site root used for absolute image URLs.
func WithImageRoot(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.imageRoot = root
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
