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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Audit event types.
const (
	AuditTenantAccess     = "tenant_access"
	AuditPermissionCheck  = "permission_check"
	AuditSuperAdminBypass = "super_admin_bypass"
)

// AuditEntry is a single access-control decision.
type AuditEntry struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	TenantID  string                 `json:"tenant_id"`
	UserID    string                 `json:"user_id"`
	Granted   bool                   `json:"granted"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retries   int                    `json:"-"`
}

// AuditQueue persists access-control decisions asynchronously. Enqueueing
// never blocks the request path: a full queue spills to the fallback file,
// and database failures retry with backoff before spilling the same way.
type AuditQueue struct {
	queue        chan AuditEntry
	workers      int
	wg           sync.WaitGroup
	db           *sql.DB
	fallbackFile *os.File
	mu           sync.Mutex

	// Read concurrently by Stats while workers write.
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewAuditQueue creates the queue and starts its workers. db may be nil,
// in which case every entry goes to the fallback file.
func NewAuditQueue(queueSize, workers int, db *sql.DB, fallbackPath string) (*AuditQueue, error) {
	fallbackFile, err := os.OpenFile(
		fallbackPath,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0600,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback file: %v", err)
	}

	aq := &AuditQueue{
		queue:        make(chan AuditEntry, queueSize),
		workers:      workers,
		db:           db,
		fallbackFile: fallbackFile,
	}

	for i := 0; i < workers; i++ {
		aq.wg.Add(1)
		go aq.worker(i)
	}

	log.Printf("AuditQueue started with %d workers, fallback: %s", workers, fallbackPath)
	return aq, nil
}

// Record enqueues an access-control decision. Best-effort: a full queue
// spills to the fallback file and the error, if any, is only logged.
func (aq *AuditQueue) Record(entry AuditEntry) {
	entry.Timestamp = time.Now()

	select {
	case aq.queue <- entry:
	default:
		aq.mu.Lock()
		defer aq.mu.Unlock()
		if err := aq.writeToFallback(entry); err != nil {
			log.Printf("Audit queue full and fallback write failed: %v", err)
		}
	}
}

func (aq *AuditQueue) worker(id int) {
	defer aq.wg.Done()

	for entry := range aq.queue {
		var err error
		for retry := 0; retry < 3; retry++ {
			if err = aq.writeToDB(entry); err == nil {
				aq.processed.Add(1)
				break
			}
			time.Sleep(time.Millisecond * time.Duration(100*(retry+1)))
			entry.Retries++
		}

		if err != nil {
			aq.failed.Add(1)
			aq.mu.Lock()
			if fallbackErr := aq.writeToFallback(entry); fallbackErr != nil {
				log.Printf("Worker %d: Failed to write to fallback: %v", id, fallbackErr)
			}
			aq.mu.Unlock()
		}
	}
}

func (aq *AuditQueue) writeToDB(entry AuditEntry) error {
	if aq.db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	detailsJSON, _ := json.Marshal(entry.Details)
	_, err := aq.db.Exec(
		`INSERT INTO access_audit_log (event_type, tenant_id, user_id, granted, details, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Type,
		entry.TenantID,
		entry.UserID,
		entry.Granted,
		detailsJSON,
		entry.Timestamp,
	)
	return err
}

func (aq *AuditQueue) writeToFallback(entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %v", err)
	}

	if _, err := fmt.Fprintf(aq.fallbackFile, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write to fallback: %v", err)
	}
	return aq.fallbackFile.Sync()
}

// Shutdown drains the queue and waits for workers to finish. If ctx
// expires first, remaining entries are saved to the fallback file.
func (aq *AuditQueue) Shutdown(ctx context.Context) error {
	log.Println("Shutting down audit queue...")

	close(aq.queue)

	done := make(chan struct{})
	go func() {
		aq.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Audit queue shutdown complete. Processed: %d, Failed: %d",
			aq.processed.Load(), aq.failed.Load())
		return aq.fallbackFile.Close()
	case <-ctx.Done():
		remaining := len(aq.queue)
		aq.mu.Lock()
		for entry := range aq.queue {
			if err := aq.writeToFallback(entry); err != nil {
				log.Printf("Failed to write entry to fallback during timeout: %v", err)
			}
		}
		aq.mu.Unlock()
		log.Printf("Timeout: Saved %d entries to fallback", remaining)
		return ctx.Err()
	}
}

// Stats returns queue counters for status endpoints.
func (aq *AuditQueue) Stats() map[string]interface{} {
	return map[string]interface{}{
		"processed": aq.processed.Load(),
		"failed":    aq.failed.Load(),
		"pending":   len(aq.queue),
	}
}
