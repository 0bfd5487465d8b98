package idgen

import "testing"

func TestIdGenMonotonic(t *testing.T) {
	gen := NewIdGen(3, 1)
	prev, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		cur, err := gen.Next()
		if err != nil {
			t.Fatal(err)
		}
		if cur[0] < prev[0] || (cur[0] == prev[0] && cur[1] <= prev[1]) {
			t.Fatal("id not increasing:", prev, cur)
		}
		prev = cur
	}
}

func TestTxIdUnique(t *testing.T) {
	gen := NewTxIdGen("Org1MSP", 1)
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id, err := gen.Next()
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != 64 {
			t.Fatal("unexpected tx id length:", len(id))
		}
		if _, ok := seen[id]; ok {
			t.Fatal("duplicated tx id:", id)
		}
		seen[id] = struct{}{}
	}
}
