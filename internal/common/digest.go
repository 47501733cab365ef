package common

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"os"
)

// RecordDigest accumulates a sha256 over a stream of records, each encoded
// as one JSON line.
type RecordDigest struct {
	h   hash.Hash
	enc *json.Encoder
	n   int
}

func NewRecordDigest() *RecordDigest {
	h := sha256.New()
	return &RecordDigest{h: h, enc: json.NewEncoder(h)}
}

// Add folds one record into the digest.
func (d *RecordDigest) Add(v any) error {
	if err := d.enc.Encode(v); err != nil {
		return err
	}
	d.n++
	return nil
}

func (d *RecordDigest) Count() int { return d.n }

// Hex returns the lowercase hex digest of everything added so far.
func (d *RecordDigest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// FileDigest identifies one artifact on disk.
type FileDigest struct {
	Sha256 string
	Size   int64
}

// HashFile returns the sha256 and byte count of the artifact at path.
func HashFile(path string) (FileDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileDigest{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return FileDigest{}, err
	}
	return FileDigest{Sha256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
