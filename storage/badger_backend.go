package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"
)

type BadgerBackendConfig struct {
	// InMemory keeps badger off disk. Snapshots are process-local, so this
	// is the only mode NewBadgerBackend opens.
	InMemory bool
	Logger   *zap.Logger
}

func TestBadgerBackendConfig() *BadgerBackendConfig {
	return &BadgerBackendConfig{InMemory: true, Logger: zap.NewNop()}
}

type BadgerBackend struct {
	db *badger.DB
}

func NewBadgerBackend(config *BadgerBackendConfig) (*BadgerBackend, error) {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	option := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(newBadgerLogger(log))
	db, err := badger.Open(option)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

func (backend *BadgerBackend) Close() error {
	return backend.db.Close()
}

func (backend *BadgerBackend) txnGet(key []byte) ([]byte, error) {
	var buf []byte
	err := backend.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		buf, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return buf, err
}

func (backend *BadgerBackend) txnPut(key, buf []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (backend *BadgerBackend) txnDelete(key []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (backend *BadgerBackend) Get(series string) ([]byte, error) {
	return backend.txnGet(GetKey(series))
}

func (backend *BadgerBackend) Put(series string, buf []byte) error {
	return backend.txnPut(GetKey(series), copyBytes(buf))
}

func (backend *BadgerBackend) Delete(series string) error {
	return backend.txnDelete(GetKey(series))
}

func (backend *BadgerBackend) Iterate(fn func(string, []byte) error) error {
	return backend.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := keyPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			buf, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(GetSeriesFromKey(item.KeyCopy(nil)), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(log *zap.Logger) badger.Logger {
	return &badgerLogger{sugar: log.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}
