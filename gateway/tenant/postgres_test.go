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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresGrantStoreHasTenantRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresGrantStoreFromDB(db)

	mock.ExpectQuery(`SELECT role FROM tenant_members`).
		WithArgs("acme", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

	has, err := store.HasTenantRole(context.Background(), "acme", "u1")
	require.NoError(t, err)
	assert.True(t, has)

	mock.ExpectQuery(`SELECT role FROM tenant_members`).
		WithArgs("acme", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	has, err = store.HasTenantRole(context.Background(), "acme", "u2")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStoreTenantPublic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresGrantStoreFromDB(db)

	mock.ExpectQuery(`SELECT publicly_active FROM tenants`).
		WithArgs("community").
		WillReturnRows(sqlmock.NewRows([]string{"publicly_active"}).AddRow(true))

	public, err := store.TenantPublic(context.Background(), "community")
	require.NoError(t, err)
	assert.True(t, public)

	// Unknown tenant reads as not public, not as an error.
	mock.ExpectQuery(`SELECT publicly_active FROM tenants`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"publicly_active"}))

	public, err = store.TenantPublic(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, public)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStorePermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresGrantStoreFromDB(db)

	mock.ExpectQuery(`SELECT permission FROM permission_grants`).
		WithArgs("acme", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"permission"}).
			AddRow("crm.*").
			AddRow("billing.invoices.read"))

	perms, err := store.Permissions(context.Background(), "acme", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm.*", "billing.invoices.read"}, perms)

	require.NoError(t, mock.ExpectationsWereMet())
}
