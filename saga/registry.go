package saga

import (
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/rickb777/date/v2/timespan"
)

const (
	tableExecution = "execution"
	indexID        = "id"
	indexStatus    = "status"
	indexParent    = "parent"
)

// Snapshot is a point-in-time view of an Execution.
type Snapshot struct {
	ID       string
	ParentID string
	Status   Status
	Started  time.Time
	Ended    time.Time // zero while the execution has not ended
	Err      error
}

// Span returns the lifetime covered by s. It is open-ended up to now for
// an execution that has not ended.
func (s Snapshot) Span() TimeSpan {
	end := s.Ended
	if end.IsZero() {
		end = time.Now()
	}
	return timespan.BetweenTimes(s.Started, end)
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableExecution: {
				Name: tableExecution,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexStatus: {
						Name:    indexStatus,
						Indexer: &memdb.IntFieldIndex{Field: "Status"},
					},
					indexParent: {
						Name:         indexParent,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "ParentID"},
					},
				},
			},
		},
	}
}

// registry indexes live executions in memdb and keeps recently finished
// ones in a bounded ristretto cache. Writes come from the loop; reads may
// come from any goroutine.
type registry struct {
	db       *memdb.MemDB
	finished *ristretto.Cache[string, Snapshot]
	ttl      time.Duration
}

func newRegistry(cfg Config) (*registry, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Snapshot]{
		NumCounters:        int64(cfg.Retention) * 10, // ten times the number of entries kept
		MaxCost:            int64(cfg.Retention),      // one unit per snapshot
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &registry{db: db, finished: cache, ttl: cfg.RetentionTTL}, nil
}

func snapshotOf(e *Execution) *Snapshot {
	snap := &Snapshot{
		ID:      e.ID(),
		Status:  e.Status(),
		Started: e.started,
		Err:     e.err,
	}
	if e.parent != nil {
		snap.ParentID = e.parent.ID()
	}
	if nanos := e.endedAt.Load(); nanos != 0 {
		snap.Ended = time.Unix(0, nanos)
	}
	return snap
}

func (r *registry) insert(e *Execution) {
	r.write(func(txn *memdb.Txn) error {
		return txn.Insert(tableExecution, snapshotOf(e))
	})
}

func (r *registry) update(e *Execution) {
	r.write(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableExecution, indexID, e.ID())
		if err != nil || raw == nil {
			return err
		}
		return txn.Insert(tableExecution, snapshotOf(e))
	})
}

// finish moves e from the live table to the retention cache.
func (r *registry) finish(e *Execution) {
	snap := snapshotOf(e)
	r.write(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableExecution, indexID, snap.ID)
		if err != nil || raw == nil {
			return err
		}
		return txn.Delete(tableExecution, raw)
	})
	r.finished.SetWithTTL(snap.ID, *snap, 1, r.ttl)
	r.finished.Wait()
}

func (r *registry) write(fn func(txn *memdb.Txn) error) {
	txn := r.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		panic(fmt.Sprintf("saga: execution registry write failed: %v", err))
	}
	txn.Commit()
}

func (r *registry) lookup(id string) (Snapshot, bool) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableExecution, indexID, id)
	if err == nil && raw != nil {
		return *raw.(*Snapshot), true
	}
	return r.finished.Get(id)
}

func (r *registry) live() []Snapshot {
	return r.query(indexID)
}

func (r *registry) withStatus(status Status) []Snapshot {
	return r.query(indexStatus, status)
}

func (r *registry) children(parentID string) []Snapshot {
	return r.query(indexParent, parentID)
}

func (r *registry) query(index string, args ...any) []Snapshot {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableExecution, index, args...)
	if err != nil {
		return nil
	}
	var out []Snapshot
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*Snapshot))
	}
	return out
}

func (r *registry) close() {
	r.finished.Close()
}
