package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/ageguess/internal/adapters/names"
	"github.com/okian/ageguess/internal/adapters/oracle"
	"github.com/okian/ageguess/internal/adapters/repository"
	"github.com/okian/ageguess/internal/adapters/sessions"
	"github.com/okian/ageguess/internal/adapters/sqlite"
	service "github.com/okian/ageguess/internal/app"
	"github.com/okian/ageguess/internal/config"
	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/pkg/logger"
)

// stores bundles the storage backends picked by config.
type stores struct {
	db          *sql.DB // nil for memory storage
	sessions    sessions.Store
	leaderboard repository.Store
}

func (s *stores) Close() error {
	_ = s.sessions.Close()
	_ = s.leaderboard.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage != config.StorageSQLite {
		return &stores{
			sessions:    sessions.NewMemoryStore(sessions.WithTTL(cfg.SessionTTL())),
			leaderboard: repository.NewTreapStore(repository.WithMaxEntries(cfg.LeaderboardMaxEntries)),
		}, nil
	}

	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:          db,
		sessions:    sessions.NewSQLiteStore(db, sessions.WithTTL(cfg.SessionTTL())),
		leaderboard: repository.NewSQLiteStore(db),
	}, nil
}

func nameList(cfg *config.Config) ([]string, error) {
	if cfg.NamesFile == "" {
		return names.Builtin(), nil
	}
	return names.LoadFile(cfg.NamesFile)
}

// subjectSource returns the service options for the configured name source.
// Static and store pools pre-select all five names at game start unless
// lazy_subjects is set; the faker generator always resolves one name per
// round.
func subjectSource(ctx context.Context, cfg *config.Config, st *stores, log logger.Logger) ([]service.Option, error) {
	ageOracle := oracle.New(
		oracle.WithBaseURL(cfg.OracleURL),
		oracle.WithAPIKey(cfg.OracleAPIKey),
		oracle.WithCountry(cfg.OracleCountry),
		oracle.WithTimeout(cfg.OracleTimeout()),
		oracle.WithLogger(log.Named("oracle")),
	)
	resolverOpts := []subjects.ResolverOption{
		subjects.WithMaxAttempts(cfg.MaxResolveAttempts),
		subjects.WithResolverLogger(log.Named("resolver")),
	}
	lazy := func(gen subjects.Generator) []service.Option {
		return []service.Option{service.WithResolver(subjects.NewResolver(gen, ageOracle, resolverOpts...))}
	}
	preselected := func(pool subjects.Pool) []service.Option {
		return []service.Option{
			service.WithPreselected(pool, ageOracle),
			service.WithReplacement(resolverOpts...),
		}
	}

	switch cfg.NameSource {
	case config.NameSourceFaker:
		return lazy(names.NewFakerGenerator(uint64(time.Now().UnixNano()))), nil

	case config.NameSourceStore:
		if st.db == nil {
			return nil, fmt.Errorf("%w: name_source store needs storage sqlite", config.ErrInvalidConfig)
		}
		list, err := nameList(cfg)
		if err != nil {
			return nil, err
		}
		pool := names.NewStorePool(st.db)
		added, err := pool.Seed(ctx, list)
		if err != nil {
			return nil, err
		}
		count, err := pool.Count(ctx)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "name store seeded", logger.Int("added", added), logger.Int("total", count))
		if cfg.LazySubjects {
			return lazy(pool), nil
		}
		return preselected(pool), nil

	default:
		list, err := nameList(cfg)
		if err != nil {
			return nil, err
		}
		pool := names.NewStaticPool(names.WithNames(list))
		if cfg.LazySubjects {
			return lazy(pool), nil
		}
		return preselected(pool), nil
	}
}
