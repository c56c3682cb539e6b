// Package core carries the small compression and hashing helpers the
// record store's snapshot path shares: LZ4 for the blob itself, BLAKE3
// for the content hash verified on restore.
//
// Adapted from the teacher's pkg/core/security.go: same helper names,
// same pooled-buffer compression strategy, generalized to serve the
// record-store snapshotting layer instead of federation handshakes.
package core

import (
	"bytes"
	"encoding/hex"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

var bufferPool = sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}

// Compress LZ4-compresses src. Used for the file-backed store's
// save_world snapshot blobs.
func Compress(src []byte) []byte {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()

	w := lz4.NewWriter(buf)
	w.Write(src)
	w.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

// Decompress reverses Compress. Used by the store's snapshot-restore
// path when the flat per-kind files are gone.
func Decompress(src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Hash returns the hex-encoded BLAKE3-256 digest of data. Written
// alongside each snapshot blob and checked before a restore is trusted.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
