// Package badger persists snapshots and connections in an embedded BadgerDB,
// for single-node deployments that want durability without DynamoDB.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/ports"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Key prefixes
const (
	prefixSnapshot   = byte(0x01) // snapshot:graphID -> JSON(Snapshot)
	prefixConnection = byte(0x02) // conn:connectionID -> JSON(Connection)
	prefixGraphIndex = byte(0x03) // graph:graphID:0x00:connectionID -> empty
)

// Options configures the store.
type Options struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool
}

// Store implements ports.SnapshotRepository and ports.ConnectionRepository
// on one BadgerDB.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

var (
	_ ports.SnapshotRepository   = (*Store)(nil)
	_ ports.ConnectionRepository = (*Store)(nil)
)

func Open(opts Options, logger *zap.Logger) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("open", err)
	}
	logger.Info("Badger store opened",
		zap.String("dir", opts.Dir),
		zap.Bool("inMemory", opts.InMemory),
	)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(graphID string) []byte {
	return append([]byte{prefixSnapshot}, graphID...)
}

func connectionKey(id string) []byte {
	return append([]byte{prefixConnection}, id...)
}

func graphIndexPrefix(graphID string) []byte {
	key := append([]byte{prefixGraphIndex}, graphID...)
	return append(key, 0x00)
}

func graphIndexKey(graphID, connID string) []byte {
	return append(graphIndexPrefix(graphID), connID...)
}

// Save stores snap. A snapshot older than the stored one is a conflict.
func (s *Store) Save(_ context.Context, snap *ports.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode snapshot").WithCause(err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		prev, err := getJSON[ports.Snapshot](txn, snapshotKey(snap.GraphID))
		if err == nil && prev.Version > snap.Version {
			return pkgerrors.NewConflictError(fmt.Sprintf(
				"snapshot for graph '%s' is at version %d, refusing %d", snap.GraphID, prev.Version, snap.Version))
		}
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(snapshotKey(snap.GraphID), raw)
	})
	if err != nil {
		return wrap("save snapshot", err)
	}
	s.logger.Debug("Snapshot saved",
		zap.String("graphID", snap.GraphID),
		zap.Uint64("version", snap.Version),
	)
	return nil
}

func (s *Store) Load(_ context.Context, graphID string) (*ports.Snapshot, error) {
	var snap *ports.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = getJSON[ports.Snapshot](txn, snapshotKey(graphID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("snapshot for graph '%s'", graphID))
	}
	if err != nil {
		return nil, wrap("load snapshot", err)
	}
	return snap, nil
}

func (s *Store) Delete(_ context.Context, graphID string) error {
	return wrap("delete snapshot", s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(graphID))
	}))
}

func (s *Store) Add(_ context.Context, conn ports.Connection) error {
	raw, err := json.Marshal(conn)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode connection").WithCause(err)
	}
	return wrap("add connection", s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(connectionKey(conn.ID), raw); err != nil {
			return err
		}
		return txn.Set(graphIndexKey(conn.GraphID, conn.ID), nil)
	}))
}

func (s *Store) Remove(_ context.Context, connectionID string) error {
	return wrap("remove connection", s.db.Update(func(txn *badger.Txn) error {
		conn, err := getJSON[ports.Connection](txn, connectionKey(connectionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(graphIndexKey(conn.GraphID, conn.ID)); err != nil {
			return err
		}
		return txn.Delete(connectionKey(connectionID))
	}))
}

func (s *Store) ListByGraph(_ context.Context, graphID string) ([]ports.Connection, error) {
	var conns []ports.Connection
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := graphIndexPrefix(graphID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id := bytes.TrimPrefix(it.Item().Key(), prefix)
			conn, err := getJSON[ports.Connection](txn, connectionKey(string(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			conns = append(conns, *conn)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list connections", err)
	}
	sort.SliceStable(conns, func(i, j int) bool {
		return conns[i].ConnectedAt.Before(conns[j].ConnectedAt)
	})
	return conns, nil
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var v T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// wrap keeps application errors and reports everything else as a database failure.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}
	return pkgerrors.NewDatabaseError(op, err)
}
