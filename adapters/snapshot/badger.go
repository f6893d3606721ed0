package snapshot

import (
	"context"
	"encoding/json"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/ports"
)

// BadgerConfig holds configuration for the embedded snapshot database
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger logrus.FieldLogger
}

// badgerLogger adapts logrus to BadgerDB's Logger interface
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// OpenBadger opens a BadgerDB instance for snapshots
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger database")
	}
	return db, nil
}

// BadgerSnapshotter stores one snapshot under a single key
type BadgerSnapshotter struct {
	db  *badger.DB
	key []byte
}

// NewBadgerSnapshotter creates a snapshotter storing under key
func NewBadgerSnapshotter(db *badger.DB, key string) ports.Snapshotter {
	return &BadgerSnapshotter{db: db, key: []byte("snapshot:" + key)}
}

// Load reads the snapshot value into v
func (b *BadgerSnapshotter) Load(ctx context.Context, v interface{}) (bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to read snapshot %s", b.key)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode snapshot %s", b.key)
	}
	return true, nil
}

// Save replaces the snapshot value
func (b *BadgerSnapshotter) Save(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to write snapshot %s", b.key)
	}
	return nil
}
