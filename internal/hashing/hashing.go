// Package hashing provides the content digests used for object, tree and
// commit identity. Two algorithms are supported: sha256 (default) and
// xxh3-128 for speed on large trees. Digests are lowercase hex.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/mmap"
)

const (
	AlgoSHA256 = "sha256"
	AlgoXXH3   = "xxh3"

	DefaultAlgo = AlgoSHA256
)

// mmapThreshold is the file size above which SumFile switches from a
// plain read to a memory-mapped one.
const mmapThreshold = 8 * 1024 * 1024 // 8 MiB

// mmapChunkSize bounds a single ReadAt when digesting mapped files.
const mmapChunkSize = 1 << 30 // 1 GiB

// Hasher computes hex-encoded content digests with a fixed algorithm.
type Hasher struct {
	algo string
}

// New returns a Hasher for the given algorithm name. An empty name
// selects DefaultAlgo.
func New(algo string) (*Hasher, error) {
	switch algo {
	case "":
		algo = DefaultAlgo
	case AlgoSHA256, AlgoXXH3:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
	return &Hasher{algo: algo}, nil
}

// Algo returns the algorithm name.
func (h *Hasher) Algo() string { return h.algo }

// Sum returns the hex digest of data.
func (h *Hasher) Sum(data []byte) string {
	switch h.algo {
	case AlgoXXH3:
		b := xxh3.Hash128(data).Bytes()
		return hex.EncodeToString(b[:])
	default:
		b := sha256.Sum256(data)
		return hex.EncodeToString(b[:])
	}
}

// SumFile returns the hex digest of a file's content. Large files are
// digested through a memory map so the whole content never has to be
// held in a heap buffer.
func (h *Hasher) SumFile(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", path, err)
	}

	if fi.Size() < mmapThreshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %q: %w", path, err)
		}
		return h.Sum(data), nil
	}

	return h.sumMapped(path, fi.Size())
}

func (h *Hasher) sumMapped(path string, size int64) (string, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return "", fmt.Errorf("mmap %q: %w", path, err)
	}
	defer r.Close()

	st := h.newState()
	buf := make([]byte, min64(size, mmapChunkSize))
	for off := int64(0); off < size; off += int64(len(buf)) {
		n := min64(size-off, int64(len(buf)))
		if _, err := r.ReadAt(buf[:n], off); err != nil {
			return "", fmt.Errorf("read mmap chunk at %d in %q: %w", off, path, err)
		}
		st.Write(buf[:n])
	}
	return st.hex(), nil
}

// state is an incremental digest in progress.
type state struct {
	std  hash.Hash
	fast *xxh3.Hasher
}

func (h *Hasher) newState() *state {
	if h.algo == AlgoXXH3 {
		return &state{fast: xxh3.New()}
	}
	return &state{std: sha256.New()}
}

func (s *state) Write(p []byte) {
	if s.fast != nil {
		s.fast.Write(p)
		return
	}
	s.std.Write(p)
}

func (s *state) hex() string {
	if s.fast != nil {
		b := s.fast.Sum128().Bytes()
		return hex.EncodeToString(b[:])
	}
	return hex.EncodeToString(s.std.Sum(nil))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
