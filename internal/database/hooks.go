package database

import (
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/embedsql/internal/capability"
)

// ChangeOp is the kind of row change reported by the update hooks.
type ChangeOp int

const (
	OpInsert ChangeOp = iota + 1
	OpUpdate
	OpDelete
)

func (op ChangeOp) String() string {
	switch op {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

func changeOp(code int) ChangeOp {
	switch code {
	case sqlite3.SQLITE_INSERT:
		return OpInsert
	case sqlite3.SQLITE_UPDATE:
		return OpUpdate
	case sqlite3.SQLITE_DELETE:
		return OpDelete
	default:
		return 0
	}
}

// Change is a row change reported after it happened.
type Change struct {
	Op     ChangeOp
	Schema string
	Table  string
	RowID  int64
}

// PreUpdate is a row change reported before it happens.
type PreUpdate struct {
	Op       ChangeOp
	Schema   string
	Table    string
	OldRowID int64
	NewRowID int64
}

// Hook callbacks run on the connection while a statement executes and must
// not use the database.
type hookSet struct {
	mu        sync.RWMutex
	update    []func(Change)
	commit    []func() error
	rollback  []func()
	preUpdate []func(PreUpdate)
}

// OnUpdate registers fn to run after every row insert, update or delete.
func (d *Database) OnUpdate(fn func(Change)) {
	d.hooks.mu.Lock()
	defer d.hooks.mu.Unlock()
	d.hooks.update = append(d.hooks.update, fn)
}

// OnCommit registers fn to run before a transaction commits. An error turns
// the commit into a rollback.
func (d *Database) OnCommit(fn func() error) {
	d.hooks.mu.Lock()
	defer d.hooks.mu.Unlock()
	d.hooks.commit = append(d.hooks.commit, fn)
}

// OnRollback registers fn to run when a transaction rolls back.
func (d *Database) OnRollback(fn func()) {
	d.hooks.mu.Lock()
	defer d.hooks.mu.Unlock()
	d.hooks.rollback = append(d.hooks.rollback, fn)
}

// OnPreUpdate registers fn to run before every row change. It needs the
// preupdate_hook feature; the engine must also be built with the
// sqlite_preupdate_hook tag for the callback to fire.
func (d *Database) OnPreUpdate(fn func(PreUpdate)) error {
	if !d.flags.Enabled(capability.FeaturePreupdateHook) {
		return ErrFeatureDisabled
	}
	d.hooks.mu.Lock()
	defer d.hooks.mu.Unlock()
	d.hooks.preUpdate = append(d.hooks.preUpdate, fn)
	return nil
}

// registerHooks installs the dispatchers on the pinned connection.
func (d *Database) registerHooks() error {
	return d.raw(func(c *sqlite3.SQLiteConn) error {
		c.RegisterUpdateHook(func(op int, schema, table string, rowID int64) {
			d.hooks.mu.RLock()
			defer d.hooks.mu.RUnlock()
			change := Change{Op: changeOp(op), Schema: schema, Table: table, RowID: rowID}
			for _, fn := range d.hooks.update {
				fn(change)
			}
		})
		c.RegisterCommitHook(func() int {
			d.hooks.mu.RLock()
			defer d.hooks.mu.RUnlock()
			for _, fn := range d.hooks.commit {
				if err := fn(); err != nil {
					d.logger.Warn("commit vetoed", "database", d.info.Name, "error", err)
					return 1
				}
			}
			return 0
		})
		c.RegisterRollbackHook(func() {
			d.hooks.mu.RLock()
			defer d.hooks.mu.RUnlock()
			for _, fn := range d.hooks.rollback {
				fn()
			}
		})
		if d.flags.Enabled(capability.FeaturePreupdateHook) {
			c.RegisterPreUpdateHook(func(data sqlite3.SQLitePreUpdateData) {
				d.hooks.mu.RLock()
				defer d.hooks.mu.RUnlock()
				pre := PreUpdate{
					Op:       changeOp(data.Op),
					Schema:   data.DatabaseName,
					Table:    data.TableName,
					OldRowID: data.OldRowID,
					NewRowID: data.NewRowID,
				}
				for _, fn := range d.hooks.preUpdate {
					fn(pre)
				}
			})
		}
		return nil
	})
}
