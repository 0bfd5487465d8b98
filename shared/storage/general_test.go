package storage_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/meidoworks/orgsync/shared/storage"
	"github.com/meidoworks/orgsync/shared/testlib"
)

func TestInMemoryIncrement(t *testing.T) {
	stor, err := storage.NewBadgerAtomicStorageInMemory()
	testlib.AssertError(t, err)
	defer stor.Close()

	const workerCnt = 10
	const taskCnt = 500

	wg := new(sync.WaitGroup)
	wg.Add(workerCnt)
	for i := 0; i < workerCnt; i++ {
		go func() {
			defer wg.Done()
			for idx := 0; idx < taskCnt; idx++ {
				if _, err := stor.IncrementBy("height/mychannel", 1); err != nil {
					panic(err)
				}
			}
		}()
	}
	wg.Wait()

	if val, err := stor.GetCount("height/mychannel"); err != nil {
		t.Fatal(err)
	} else if val != workerCnt*taskCnt {
		t.Fatal("value mismatch:", val)
	}

	if _, err := stor.GetCount("height/absent"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatal("expect key not found, got", err)
	}
}

func TestInMemorySetIfAbsent(t *testing.T) {
	stor, err := storage.NewBadgerAtomicStorageInMemory()
	testlib.AssertError(t, err)
	defer stor.Close()

	var count uint32
	start := make(chan struct{})
	wg := new(sync.WaitGroup)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, put, err := stor.SetIfAbsent("join/mychannel/peer0", []byte("ok"))
			if err != nil {
				panic(err)
			}
			if put {
				atomic.AddUint32(&count, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if count != 1 {
		t.Fatal("exactly one writer should win, got", count)
	}

	_, _, err = stor.SetIfAbsent("join/mychannel/peer1", []byte("ok"))
	testlib.AssertError(t, err)
	_, _, err = stor.SetIfAbsent("join/other/peer0", []byte("ok"))
	testlib.AssertError(t, err)
	m, err := stor.ListPrefix("join/mychannel/")
	testlib.AssertError(t, err)
	if len(m) != 2 {
		t.Fatal("expect 2 entries, got", len(m))
	}
}

func TestSetOverwrites(t *testing.T) {
	stor, err := storage.NewBadgerAtomicStorageInMemory()
	testlib.AssertError(t, err)
	defer stor.Close()

	testlib.AssertError(t, stor.Set("state/mychannel/mycc/a", []byte("1")))
	testlib.AssertError(t, stor.Set("state/mychannel/mycc/a", []byte("2")))
	v, err := stor.Get("state/mychannel/mycc/a")
	testlib.AssertError(t, err)
	if string(v) != "2" {
		t.Fatal("value mismatch:", string(v))
	}
}
