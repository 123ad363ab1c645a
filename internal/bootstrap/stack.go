package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/mediatask/internal/config"
	"github.com/phrazzld/mediatask/internal/platform/postgres"
	"github.com/phrazzld/mediatask/internal/platform/redis"
	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/store/memory"
	"github.com/phrazzld/mediatask/internal/task"
)

// Backend and broker names accepted in configuration
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Broker is both ends of the dispatch queue
type Broker interface {
	task.TaskQueueWriter
	task.TaskQueueReader
}

// starter is implemented by brokers that need a consumer loop
type starter interface {
	Start(ctx context.Context)
}

// Stack holds the shared state components built from configuration
type Stack struct {
	Config   *config.Config
	Results  store.ResultStore
	Tasks    *task.ResultTaskStore
	Registry *task.Registry
	Broker   Broker

	logger  *slog.Logger
	rdb     *goredis.Client
	closers []func() error
}

// Open connects the configured result store and broker. The caller must
// Close the stack, also when a later step fails.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	s := &Stack{
		Config: cfg,
		logger: logger.With("component", "bootstrap"),
	}

	results, err := s.openStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Results = results
	s.Tasks = task.NewResultTaskStore(results, cfg.Store.KeyPrefix).
		WithDispatchPrefix(cfg.Store.DispatchPrefix)
	s.Registry = task.NewRegistry(results, cfg.Store.RegistryKey)

	broker, err := s.openBroker(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Broker = broker

	s.logger.Info("state stack ready",
		"store_backend", cfg.Store.Backend,
		"broker", cfg.Worker.Broker)
	return s, nil
}

func (s *Stack) openStore(ctx context.Context) (store.ResultStore, error) {
	switch s.Config.Store.Backend {
	case BackendMemory:
		return memory.New(), nil

	case BackendRedis:
		rdb, err := s.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewStore(rdb), nil

	case BackendPostgres:
		db, err := postgres.Open(ctx, s.Config.Store.PostgresURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)

		if err := postgres.Migrate(ctx, db, s.logger); err != nil {
			return nil, err
		}
		return postgres.NewPostgresResultStore(db), nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, s.Config.Store.Backend)
	}
}

func (s *Stack) openBroker(ctx context.Context) (Broker, error) {
	switch s.Config.Worker.Broker {
	case BackendMemory:
		return task.NewTaskQueue(s.Config.Worker.QueueSize, s.logger), nil

	case BackendRedis:
		rdb, err := s.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewQueue(rdb, s.Config.Worker.QueueName, s.logger), nil

	default:
		return nil, fmt.Errorf("%w: unknown broker %q", config.ErrInvalidConfig, s.Config.Worker.Broker)
	}
}

// redisClient connects once and shares the client between store and broker
func (s *Stack) redisClient(ctx context.Context) (*goredis.Client, error) {
	if s.rdb != nil {
		return s.rdb, nil
	}
	rdb, err := redis.Connect(ctx, s.Config.Store.RedisURL)
	if err != nil {
		return nil, err
	}
	s.rdb = rdb
	s.closers = append(s.closers, rdb.Close)
	return rdb, nil
}

// Pinger returns the result store's reachability check, if it has one
func (s *Stack) Pinger() store.Pinger {
	if p, ok := s.Results.(store.Pinger); ok {
		return p
	}
	return nil
}

// SharedBroker reports whether dispatches survive this process, so other
// processes may be consuming them
func (s *Stack) SharedBroker() bool {
	return s.Config.Worker.Broker != BackendMemory
}

// StartBroker starts the consumer loop of brokers that have one. Only
// processes that run workers call it.
func (s *Stack) StartBroker(ctx context.Context) {
	if st, ok := s.Broker.(starter); ok {
		st.Start(ctx)
	}
}

// Close releases the broker and connections in reverse order of creation
func (s *Stack) Close() error {
	if s.Broker != nil {
		s.Broker.Close()
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
