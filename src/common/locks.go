package common

import (
	"cbs/src/types"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Every multi-entity transition on an order runs behind its keyed mutex in
// addition to the row lock, so a checkout racing an expiration sweep within
// the same process serializes even before the database sees either.
var orderLocks sync.Map

func LockOrder(id uint) func() {
	v, _ := orderLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forUpdate takes a row-level lock on dialects that support it. sqlite
// serializes writers itself and has no FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

const courtLockClass = 0x636274

// lockCourts serializes admission on the contested courts inside the
// caller's transaction. The accept/reject/queue decision and the inserts it
// justifies must happen under this lock: two transactions evaluating the
// same window must see each other's bookings, which the order-keyed lock
// cannot guarantee across different orders. Postgres takes a
// transaction-scoped advisory lock per court, released at commit or
// rollback; sqlite's single writer already serializes. Courts lock in
// ascending id order so contending transactions never deadlock each other.
func lockCourts(tx *gorm.DB, courtIDs ...uint) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	for _, id := range courtLockKeys(courtIDs) {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?::int, ?::int)", courtLockClass, id).Error; err != nil {
			return err
		}
	}
	return nil
}

func courtLockKeys(courtIDs []uint) []uint {
	seen := make(map[uint]bool, len(courtIDs))
	keys := make([]uint, 0, len(courtIDs))
	for _, id := range courtIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// asDomainError passes engine errors through untouched and classifies
// driver-level lock contention as a retryable concurrency failure instead
// of an unclassified one.
func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de *types.DomainError
	if errors.As(err, &de) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return types.NewConcurrencyError("transaction aborted by lock contention: %s", pgErr.Message)
		}
	}
	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "database table is locked") {
		return types.NewConcurrencyError("transaction aborted by lock contention: %s", err.Error())
	}
	return err
}
