package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Pratik1445/skillfolio/internal/challenge"
	"github.com/Pratik1445/skillfolio/internal/chat"
	"github.com/Pratik1445/skillfolio/internal/community"
	"github.com/Pratik1445/skillfolio/internal/config"
	"github.com/Pratik1445/skillfolio/internal/connection"
	"github.com/Pratik1445/skillfolio/internal/database"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/handlers"
	"github.com/Pratik1445/skillfolio/internal/hub"
	"github.com/Pratik1445/skillfolio/internal/identity"
	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/Pratik1445/skillfolio/internal/keyValue"
	"github.com/Pratik1445/skillfolio/internal/objectstore"
	"github.com/Pratik1445/skillfolio/internal/portfolio"
	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"github.com/Pratik1445/skillfolio/internal/tasks"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.LogToFile {
		zapConfig.OutputPaths = []string{"app.log", "stdout"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	err := rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// backend is every long lived part of the server, built once at startup.
type backend struct {
	cfg   *config.Config
	sugar *zap.SugaredLogger

	db          *sql.DB
	redisClient *redis.Client
	cancel      context.CancelFunc

	tasks       *tasks.Tracker
	hub         *hub.Hub
	communities *community.Service
	challenges  *challenge.Service
	handlers    *handlers.Handlers
}

// open builds the backend. With memory set the documents live in a private
// in-memory sqlite database regardless of the config.
func open(cfg *config.Config, sugar *zap.SugaredLogger, memory bool) (*backend, error) {
	if cfg.JwtSecret == "" && !memory {
		return nil, errors.New("JwtSecret is missing from the config file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &backend{cfg: cfg, sugar: sugar, cancel: cancel}

	var err error
	if memory {
		b.db, err = database.OpenMemory()
	} else {
		b.db, err = database.Setup(cfg, sugar)
	}
	if err != nil {
		b.close()
		return nil, fmt.Errorf("database: %w", err)
	}

	selfContained := cfg.SelfContained || memory
	if !selfContained {
		sugar.Infof("Connecting to redis at %s...", cfg.RedisAddress)
		b.redisClient, err = setupRedis(ctx, cfg)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	var feed docstore.Changefeed
	if selfContained {
		feed = docstore.NewLocalChangefeed()
	} else {
		feed = docstore.NewRedisChangefeed(b.redisClient, sugar)
	}
	kv := keyValue.New(ctx, sugar, b.redisClient, selfContained)

	ids, err := snowflake.New(cfg.SnowflakeWorkerID)
	if err != nil {
		b.close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		b.close()
		return nil, fmt.Errorf("timezone: %w", err)
	}

	objects, err := objectstore.New(cfg.StorageRoot, cfg.PublicBaseURL, sugar)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	docs := docstore.New(b.db, feed, ids, sugar)
	tokens := jwt.NewIssuer(cfg.JwtSecret, cfg.IsHttps())

	b.tasks = tasks.New(cfg.TaskLogSize, sugar)
	b.hub = hub.New(sugar, ids)
	b.communities = community.New(docs, cfg.Cascade(), sugar)
	b.challenges = challenge.New(docs, objects, cfg.MaxUploadBytes, sugar)

	b.handlers = &handlers.Handlers{
		Config:      cfg,
		Sugar:       sugar,
		Identity:    identity.New(b.db, docs, kv, feed, tokens, ids, sugar),
		Tokens:      tokens,
		Communities: b.communities,
		Challenges:  b.challenges,
		Portfolios:  portfolio.New(docs, objects, cfg.MaxUploadBytes, sugar),
		Connections: connection.New(docs, sugar),
		Chat: chat.NewService(docs, b.tasks, chat.Config{
			Window:     cfg.ChatWindow,
			Heartbeat:  cfg.PresenceHeartbeat.Duration,
			StaleAfter: cfg.PresenceStaleAfter.Duration,
			Location:   loc,
		}, sugar),
		Hub:     b.hub,
		Tasks:   b.tasks,
		Objects: objects,
	}

	return b, nil
}

// seed inserts the sample communities and challenges into empty collections.
func (b *backend) seed(ctx context.Context) (communities int, challenges int, err error) {
	communities, err = b.communities.SeedDefaults(ctx)
	if err != nil {
		return 0, 0, err
	}
	challenges, err = b.challenges.SeedDefaults(ctx)
	if err != nil {
		return communities, 0, err
	}
	return communities, challenges, nil
}

// close waits for detached writes before the stores go away.
func (b *backend) close() {
	if b.tasks != nil {
		b.tasks.Wait()
	}
	b.cancel()
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			b.sugar.Warn(err)
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.sugar.Warn(err)
		}
	}
}
