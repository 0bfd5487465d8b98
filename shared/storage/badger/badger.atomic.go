package badger

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/meidoworks/orgsync/shared/logging"

	"github.com/dgraph-io/badger/v3"
)

var _badgerAtomicStorageLogger = logging.NewLogger("BadgerAtomicStorage")

var ErrKeyNotFound = badger.ErrKeyNotFound

type atomicStorage struct {
	db     *badger.DB
	stopCh chan struct{}
}

func (a *atomicStorage) GetCount(key string) (int, error) {
	v, err := a.Get(key)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint64(v)), nil
}

func (a *atomicStorage) Get(key string) ([]byte, error) {
	txn := a.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (a *atomicStorage) ListPrefix(prefix string) (map[string][]byte, error) {
	result := map[string][]byte{}
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.KeyCopy(nil))] = v
		}
		return nil
	})
	return result, err
}

func (a *atomicStorage) IncrementBy(key string, val int) (int, error) {
	if val <= 0 {
		return 0, errors.New("val should be greater than 0")
	}

	keyVal := []byte(key)
	for {
		r, err := func() (int, error) {
			txn := a.db.NewTransaction(true)
			defer txn.Discard()

			newV := val
			item, err := txn.Get(keyVal)
			if err != nil && err != badger.ErrKeyNotFound {
				return 0, err
			} else if err == nil {
				v, err := item.ValueCopy(nil)
				if err != nil {
					return 0, err
				}
				newV += int(binary.LittleEndian.Uint64(v))
			}

			newVal := make([]byte, 8)
			binary.LittleEndian.PutUint64(newVal, uint64(newV))
			if err := txn.Set(keyVal, newVal); err != nil {
				return 0, err
			}
			if err := txn.Commit(); err != nil {
				return 0, err
			}
			return newV, nil
		}()
		if err == badger.ErrConflict {
			continue
		} else if err != nil {
			return 0, err
		} else {
			return r, nil
		}
	}
}

func (a *atomicStorage) SetIfAbsent(key string, value []byte) ([]byte, bool, error) {
	for {
		v, put, err := func() ([]byte, bool, error) {
			txn := a.db.NewTransaction(true)
			defer txn.Discard()

			item, err := txn.Get([]byte(key))
			if err == nil {
				v, err := item.ValueCopy(nil)
				if err != nil {
					return nil, false, err
				}
				return v, false, nil
			} else if err != badger.ErrKeyNotFound {
				return nil, false, err
			}

			if err := txn.Set([]byte(key), value); err != nil {
				return nil, false, err
			}
			if err := txn.Commit(); err != nil {
				return nil, false, err
			}
			return value, true, nil
		}()
		if err == badger.ErrConflict {
			continue
		} else if err != nil {
			return nil, false, err
		} else {
			return v, put, nil
		}
	}
}

func (a *atomicStorage) Set(key string, value []byte) error {
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (a *atomicStorage) Close() error {
	close(a.stopCh)
	return a.db.Close()
}

func NewAtomicDB(path string, inMemory bool) (*atomicStorage, error) {
	opt := badger.DefaultOptions(path).WithInMemory(inMemory).WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, err
	}

	a := &atomicStorage{
		db:     db,
		stopCh: make(chan struct{}),
	}

	if !inMemory {
		go a.maintain()
	}

	return a, nil
}

func (a *atomicStorage) maintain() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
		}
		// This gc handling comes from official document
		for a.db.RunValueLogGC(0.7) == nil {
		}
		if err := a.db.Sync(); err != nil {
			_badgerAtomicStorageLogger.Errorf("invoke sync failed:[%s]", err)
		}
	}
}
