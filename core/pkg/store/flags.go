package store

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"
	"go.uber.org/zap"

	"github.com/open-feature/featuremanager/core/pkg/logger"
	"github.com/open-feature/featuremanager/core/pkg/model"
)

const flagsTable = "flags"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		flagsTable: {
			Name: flagsTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID", Lowercase: false},
				},
			},
		},
	},
}

// Flags caches parsed flag definitions for one configuration snapshot. The cache is dropped as
// soon as a lookup names a different snapshot, compared by address only.
type Flags struct {
	mx       sync.Mutex
	db       *memdb.MemDB
	snapshot *model.FeatureManagement
	logger   *logger.Logger
}

func NewFlags(log *logger.Logger) *Flags {
	if log == nil {
		log = logger.NewNop()
	}
	return &Flags{
		db:     newDB(),
		logger: log,
	}
}

func newDB() *memdb.MemDB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return db
}

// Get returns the definition of id in snapshot, parsing and caching it on a miss. A nil
// definition with a nil error means the snapshot has no such flag.
func (f *Flags) Get(snapshot *model.FeatureManagement, id string) (*model.FlagDefinition, error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	if snapshot != f.snapshot {
		f.logger.Debug("configuration snapshot changed, clearing flag cache")
		f.db = newDB()
		f.snapshot = snapshot
	}

	txn := f.db.Txn(false)
	cached, err := txn.First(flagsTable, "id", id)
	txn.Abort()
	if err != nil {
		return nil, fmt.Errorf("unable to read flag cache: %w", err)
	}
	if cached != nil {
		return cached.(*model.FlagDefinition), nil
	}

	raw, ok := snapshot.Find(id)
	if !ok {
		return nil, nil
	}
	flag, err := model.ParseFlag(raw)
	if err != nil {
		return nil, err
	}

	wtxn := f.db.Txn(true)
	if err := wtxn.Insert(flagsTable, flag); err != nil {
		wtxn.Abort()
		return nil, fmt.Errorf("unable to cache flag %s: %w", id, err)
	}
	wtxn.Commit()
	f.logger.Debug("cached flag definition", zap.String("flag", id))

	return flag, nil
}

// Len counts the cached definitions.
func (f *Flags) Len() int {
	f.mx.Lock()
	defer f.mx.Unlock()

	txn := f.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(flagsTable, "id")
	if err != nil {
		return 0
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n
}
