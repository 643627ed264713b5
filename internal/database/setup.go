package database

import (
	"database/sql"
	"fmt"

	"github.com/Pratik1445/skillfolio/internal/config"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}

	return nil
}

func readPragmaValues(db *sql.DB, sugar *zap.SugaredLogger) error {
	var journalModeValue string
	err := db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Infof("sqlite PRAGMA journal_mode: %s, synchronous: %s", journalModeValue, synchronousValueStr)
	return nil
}

func Setup(cfg *config.Config, sugar *zap.SugaredLogger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if cfg.SelfContained {
		sugar.Infof("Connecting to database sqlite at %s...", cfg.SqlitePath)

		db, err = sql.Open("sqlite", cfg.SqlitePath)
		if err != nil {
			return nil, err
		}

		// there can be sqlite busy errors if this is not set to 1
		db.SetMaxOpenConns(1)

		err = setPragmaValues(db)
		if err != nil {
			db.Close()
			return nil, err
		}

		err = readPragmaValues(db, sugar)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		sugar.Info("Connecting to database mysql/mariadb...")

		db, err = sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase))
		if err != nil {
			return nil, err
		}

		db.SetMaxOpenConns(10)

		if err = db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
	}

	err = setupTables(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenMemory opens a private in-memory sqlite database with the tables in
// place. Used by tests and by the seed command's dry runs.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}

	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	err = setupTables(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setupTables(db *sql.DB) error {
	var err error

	// credentials belong to the identity provider, profiles live in the users collection
	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS credentials (
				user_id VARCHAR(64) PRIMARY KEY,
				email VARCHAR(64) NOT NULL UNIQUE,
				display_name VARCHAR(64) NOT NULL,
				password BINARY(60) NOT NULL,
				created_at BIGINT NOT NULL
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS documents (
				collection VARCHAR(255) NOT NULL,
				id VARCHAR(64) NOT NULL,
				data LONGTEXT NOT NULL,
				create_time BIGINT NOT NULL,
				update_time BIGINT NOT NULL,
				PRIMARY KEY (collection, id)
			);
		`)
	if err != nil {
		return err
	}

	return nil
}
