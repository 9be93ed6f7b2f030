package storage

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func TestPrefixDB_Namespace(t *testing.T) {
	inner := NewMemory()
	wallets := NewPrefixDB(inner, []byte("w/"))
	keys := NewPrefixDB(inner, []byte("k/"))

	wallets.Put([]byte("main"), []byte("snapshot"))
	keys.Put([]byte("main"), []byte("keystore"))

	raw, err := inner.Get([]byte("w/main"))
	if err != nil || !bytes.Equal(raw, []byte("snapshot")) {
		t.Errorf("inner w/main = %q, %v", raw, err)
	}
	got, _ := keys.Get([]byte("main"))
	if !bytes.Equal(got, []byte("keystore")) {
		t.Errorf("k/main = %q, want keystore", got)
	}

	if ok, _ := wallets.Has([]byte("other")); ok {
		t.Error("Has() = true for a key outside the namespace")
	}
	wallets.Delete([]byte("main"))
	if _, err := wallets.Get([]byte("main")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
	if ok, _ := keys.Has([]byte("main")); !ok {
		t.Error("delete leaked into another namespace")
	}
}

func TestPrefixDB_Keys(t *testing.T) {
	inner := NewMemory()
	p := NewPrefixDB(inner, []byte("w/"))
	p.Put([]byte("b"), []byte("2"))
	p.Put([]byte("a"), []byte("1"))
	inner.Put([]byte("x/c"), []byte("3"))

	keys, err := p.Keys()
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if !slices.Equal(keys, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
}
