// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresGrantStore reads tenant membership and permission grants from
// PostgreSQL. Schema:
//
//	tenant_members(tenant_id, user_id, role)
//	tenants(id, publicly_active)
//	permission_grants(tenant_id, user_id, permission)
type PostgresGrantStore struct {
	db *sql.DB
}

// NewPostgresGrantStore opens a connection pool against dsn and verifies
// it with a bounded ping.
func NewPostgresGrantStore(dsn string) (*PostgresGrantStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresGrantStore{db: db}, nil
}

// NewPostgresGrantStoreFromDB wraps an existing pool (used by tests).
func NewPostgresGrantStoreFromDB(db *sql.DB) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

// HasTenantRole implements GrantStore.
func (s *PostgresGrantStore) HasTenantRole(ctx context.Context, tenantID, userID string) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM tenant_members WHERE tenant_id = $1 AND user_id = $2 LIMIT 1`,
		tenantID, userID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenant role lookup: %w", err)
	}
	return true, nil
}

// TenantPublic implements GrantStore.
func (s *PostgresGrantStore) TenantPublic(ctx context.Context, tenantID string) (bool, error) {
	var public bool
	err := s.db.QueryRowContext(ctx,
		`SELECT publicly_active FROM tenants WHERE id = $1`,
		tenantID,
	).Scan(&public)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenant lookup: %w", err)
	}
	return public, nil
}

// Permissions implements GrantStore.
func (s *PostgresGrantStore) Permissions(ctx context.Context, tenantID, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT permission FROM permission_grants WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("permission lookup: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("permission scan: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("permission rows: %w", err)
	}
	return perms, nil
}

// DB exposes the underlying pool so the audit queue can share it.
func (s *PostgresGrantStore) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *PostgresGrantStore) Close() error {
	return s.db.Close()
}
