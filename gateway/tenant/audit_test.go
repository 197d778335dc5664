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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditQueueWritesToDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO access_audit_log`).
		WithArgs(AuditTenantAccess, "acme", "u1", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fallback := filepath.Join(t.TempDir(), "audit.jsonl")
	aq, err := NewAuditQueue(10, 1, db, fallback)
	require.NoError(t, err)

	aq.Record(AuditEntry{
		Type:     AuditTenantAccess,
		TenantID: "acme",
		UserID:   "u1",
		Granted:  true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQueueFallbackWithoutDB(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "audit.jsonl")
	aq, err := NewAuditQueue(10, 1, nil, fallback)
	require.NoError(t, err)

	aq.Record(AuditEntry{
		Type:     AuditPermissionCheck,
		TenantID: "acme",
		UserID:   "u1",
		Granted:  false,
		Details:  map[string]interface{}{"required": "crm.contacts.write"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))

	data, err := os.ReadFile(fallback)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, AuditPermissionCheck, entry.Type)
	assert.Equal(t, "acme", entry.TenantID)
	assert.False(t, entry.Granted)
}

func TestAuditQueueNeverBlocksWhenFull(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "audit.jsonl")
	// Zero workers: nothing drains the queue.
	aq := &AuditQueue{
		queue: make(chan AuditEntry, 1),
	}
	f, err := os.OpenFile(fallback, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	defer f.Close()
	aq.fallbackFile = f

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			aq.Record(AuditEntry{Type: AuditTenantAccess, UserID: "u1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	// The overflow went to the fallback file.
	data, err := os.ReadFile(fallback)
	require.NoError(t, err)
	overflow := strings.Count(string(data), "\n")
	assert.Equal(t, 9, overflow)
}

func TestAuditQueueStatsDuringProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	const entries = 50
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < entries; i++ {
		mock.ExpectExec(`INSERT INTO access_audit_log`).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	fallback := filepath.Join(t.TempDir(), "audit.jsonl")
	aq, err := NewAuditQueue(entries, 4, db, fallback)
	require.NoError(t, err)

	// Hammer Stats while the workers drain; the counters must stay
	// readable concurrently.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				aq.Stats()
			}
		}
	}()

	for i := 0; i < entries; i++ {
		aq.Record(AuditEntry{Type: AuditPermissionCheck, TenantID: "acme", UserID: "u1", Granted: true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))
	close(stop)

	stats := aq.Stats()
	assert.Equal(t, uint64(entries), stats["processed"])
	assert.Equal(t, uint64(0), stats["failed"])
}
