package storage

import "github.com/meidoworks/orgsync/shared/storage/badger"

type AtomicStorage interface {
	IncrementBy(key string, val int) (int, error)
	GetCount(key string) (int, error)

	SetIfAbsent(key string, value []byte) ([]byte, bool, error)
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	ListPrefix(prefix string) (map[string][]byte, error)

	Close() error
}

var ErrKeyNotFound = badger.ErrKeyNotFound

func NewBadgerAtomicStorage(path string) (AtomicStorage, error) {
	return badger.NewAtomicDB(path, false)
}

func NewBadgerAtomicStorageInMemory() (AtomicStorage, error) {
	return badger.NewAtomicDB("", true)
}
