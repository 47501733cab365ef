package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordDigestIsOrderSensitive(t *testing.T) {
	a, b := NewRecordDigest(), NewRecordDigest()
	for _, v := range []string{"C201", "C203"} {
		if err := a.Add(map[string]string{"code": v}); err != nil {
			t.Fatal(err)
		}
	}
	for _, v := range []string{"C203", "C201"} {
		if err := b.Add(map[string]string{"code": v}); err != nil {
			t.Fatal(err)
		}
	}
	if a.Count() != 2 || len(a.Hex()) != 64 {
		t.Fatalf("count=%d hex=%q", a.Count(), a.Hex())
	}
	if a.Hex() == b.Hex() {
		t.Fatalf("reordered records produced the same digest")
	}
	if a.Hex() != a.Hex() {
		t.Fatalf("Hex is not stable")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert-r1.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got.Sha256 != want || got.Size != 3 {
		t.Fatalf("HashFile = %+v", got)
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
