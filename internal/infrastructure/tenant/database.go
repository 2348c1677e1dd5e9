// Package tenant provides database abstraction for multi-tenant support.
package tenant

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

var (
	connectionPools = make(map[string]*sql.DB)
	poolMutex       = &sync.RWMutex{}
)

// Database wraps a tenant's partition connection.
type Database struct {
	Conn     *sql.DB
	TenantID string
	UseTurso bool
	isPooled bool
}

// NewDatabase opens (or reuses) the pooled connection for a tenant partition.
func NewDatabase(info *Info) (*Database, error) {
	poolKey := getPoolKey(info)

	poolMutex.Lock()
	defer poolMutex.Unlock()

	if pooledConn, exists := connectionPools[poolKey]; exists {
		if err := pooledConn.Ping(); err == nil {
			return &Database{
				Conn:     pooledConn,
				TenantID: info.TenantID,
				UseTurso: info.TursoDatabase != "",
				isPooled: true,
			}, nil
		}
		pooledConn.Close()
		delete(connectionPools, poolKey)
	}

	var conn *sql.DB
	var err error
	var useTurso bool

	if info.TursoDatabase != "" && info.TursoToken != "" {
		connStr := info.TursoDatabase + "?authToken=" + info.TursoToken
		conn, err = sql.Open("libsql", connStr)
		if err != nil || conn.Ping() != nil {
			return nil, fmt.Errorf("tenant %s degraded: turso connection failed", info.TenantID)
		}
		useTurso = true
	} else {
		dbDir := filepath.Dir(info.SQLitePath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		conn, err = sql.Open("sqlite3", info.SQLitePath+"?_journal_mode=WAL&_busy_timeout=5000")
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite database ping failed: %w", err)
		}
		useTurso = false
	}

	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)

	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("schema migration failed for tenant %s: %w", info.TenantID, err)
	}

	connectionPools[poolKey] = conn

	return &Database{
		Conn:     conn,
		TenantID: info.TenantID,
		UseTurso: useTurso,
		isPooled: true,
	}, nil
}

func getPoolKey(info *Info) string {
	if info.TursoDatabase != "" {
		return fmt.Sprintf("turso:%s", info.TenantID)
	}
	return fmt.Sprintf("sqlite:%s", info.SQLitePath)
}

// Close is a no-op for pooled connections; the pool owns their lifecycle.
func (db *Database) Close() error {
	if db.isPooled {
		return nil
	}
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

// GetConnectionInfo returns a human-readable description of the connection.
func (db *Database) GetConnectionInfo() string {
	poolStatus := ""
	if db.isPooled {
		poolStatus = " (pooled)"
	}
	if db.UseTurso {
		return fmt.Sprintf("Turso (tenant: %s)%s", db.TenantID, poolStatus)
	}
	return fmt.Sprintf("SQLite (tenant: %s)%s", db.TenantID, poolStatus)
}

// GetPoolStats reports the size and health of the connection pool.
func GetPoolStats() map[string]int {
	poolMutex.RLock()
	defer poolMutex.RUnlock()

	stats := make(map[string]int)
	stats["total"] = len(connectionPools)
	active := 0
	for _, conn := range connectionPools {
		if conn.Ping() == nil {
			active++
		}
	}
	stats["active"] = active
	return stats
}

// CleanupStaleConnections drops dead pooled connections. Intended to run on a
// background interval.
func CleanupStaleConnections() int {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	staleKeys := make([]string, 0)
	for key, conn := range connectionPools {
		if err := conn.Ping(); err != nil {
			conn.Close()
			staleKeys = append(staleKeys, key)
		}
	}

	for _, key := range staleKeys {
		delete(connectionPools, key)
	}
	return len(staleKeys)
}
