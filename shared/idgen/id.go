package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"runtime"
	"sync"
	"time"
)

var (
	maxValueInt32 = int32(0x7fffffff)

	ErrClockBackward = errors.New("clock backward")
)

const (
	startTimeMillis int64 = 1521639000000 // 20180321213000
)

type IdType [2]int64

func (i IdType) HexString() string {
	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data[0:8], uint64(i[0]))
	binary.BigEndian.PutUint64(data[8:16], uint64(i[1]))
	return hex.EncodeToString(data)
}

type IdGen struct {
	lock sync.Mutex

	time int64
	seq  int32

	nodeIdMask    int64
	elementIdMask int64
}

// NewIdGen creates ID Generator
// Format of Id: 48 bits time + 16 bits nodeId + 32 bits elementId + 32 bits inc
func NewIdGen(nodeId int16, elementId int32) *IdGen {
	return &IdGen{
		nodeIdMask:    int64(nodeId) & 0x000000000000FFFF,
		elementIdMask: (int64(elementId) & 0x00000000FFFFFFFF) << 32,
	}
}

func (id *IdGen) getTimeMillis() int64 {
	return time.Now().UnixMilli() & 0x7fffffffffffffff
}

func (id *IdGen) Next() (IdType, error) {
	timeInMills := id.getTimeMillis()
	id.lock.Lock()
	defer id.lock.Unlock()

	switch {
	case timeInMills > id.time:
		id.time = timeInMills
		id.seq = 0
	case timeInMills == id.time && id.seq < maxValueInt32:
		id.seq++
	case timeInMills == id.time:
		id.time = id.tillNextMillisecond(timeInMills)
		id.seq = 0
	default:
		return IdType{}, ErrClockBackward
	}
	l := id.elementIdMask | (int64(id.seq) & 0x00000000ffffffff)
	return IdType{((id.time - startTimeMillis) << 16) | id.nodeIdMask, l}, nil
}

func (id *IdGen) tillNextMillisecond(time int64) int64 {
	for {
		newtime := id.getTimeMillis()
		if newtime > time {
			return newtime
		}
		runtime.Gosched()
	}
}

// TxIdGen issues ledger transaction ids bound to one organization.
// A transaction id is hex(sha256(nonce || creator || sequence id)).
type TxIdGen struct {
	creator string
	gen     *IdGen
}

func NewTxIdGen(creator string, nodeId int16) *TxIdGen {
	return &TxIdGen{
		creator: creator,
		gen:     NewIdGen(nodeId, 1),
	}
}

func (t *TxIdGen) Next() (string, error) {
	id, err := t.gen.Next()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, 24)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(nonce)
	h.Write([]byte(t.creator))
	h.Write([]byte(id.HexString()))
	return hex.EncodeToString(h.Sum(nil)), nil
}
