package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/db/models"
	"github.com/agnosto/fbtweeter/db/repository"
	"github.com/agnosto/fbtweeter/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// ResolveDriver returns the configured driver, or infers one from the connection string scheme.
func ResolveDriver(driver, conn string) (string, error) {
	switch driver {
	case DriverMongo, DriverSQLite, DriverPostgres:
		return driver, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	lower := strings.ToLower(conn)
	switch {
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return DriverMongo, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("%w: cannot infer driver from connection string", ErrUnknownDriver)
}

// Open connects to the configured store. The caller owns the returned
// repository and must Close it when its unit of work is done.
func Open(ctx context.Context, cfg *config.Config) (repository.PostRepository, error) {
	conn := cfg.Secrets.StoreConnectionString
	driver, err := ResolveDriver(cfg.Store.Driver, conn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
	defer cancel()

	switch driver {
	case DriverMongo:
		return OpenMongo(ctx, conn, cfg.Store.Database)
	case DriverPostgres:
		return OpenPostgres(ctx, conn)
	default:
		return OpenSQLite(strings.TrimPrefix(conn, "sqlite://"))
	}
}

// OpenMongo connects and pings. A database named in the URI path wins over defaultDB.
func OpenMongo(ctx context.Context, uri, defaultDB string) (*repository.MongoPostRepository, error) {
	dbName := defaultDB
	if cs, err := connstring.ParseAndValidate(uri); err == nil && cs.Database != "" {
		dbName = cs.Database
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	repo := repository.NewMongoPostRepository(client, client.Database(dbName).Collection(config.CollectionName))
	if err := repo.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
	}
	return repo, nil
}

func OpenPostgres(ctx context.Context, dsn string) (*repository.PostgresPostRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := repository.NewPostgresPostRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repo, nil
}

// OpenSQLite opens the database file through GORM on the pure-Go sqlite driver.
func OpenSQLite(dbPath string) (*repository.GormPostRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Configure GORM logger
	logConfig := gormlogger.Config{
		LogLevel: gormlogger.Warn, // Log only warnings and errors
		Colorful: false,
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        sqliteDSN(dbPath),
	}), &gorm.Config{
		Logger: gormlogger.New(logger.Logger, logConfig),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.PostRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repository.NewGormPostRepository(db), nil
}

// sqliteDSN pins the time format so created_time sorts chronologically as text.
func sqliteDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_time_format=sqlite"
}
