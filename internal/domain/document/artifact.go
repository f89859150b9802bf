package document

import (
	"bytes"
	"encoding/hex"
	"io"
	"time"

	"github.com/zeebo/blake3"
)

// Artifact is an immutable generated document.
// Bytes are copied on the way in and on the way out.
type Artifact struct {
	data        []byte
	createdAt   time.Time
	fingerprint string
}

// NewArtifact creates an artifact from a copy of data
func NewArtifact(data []byte, createdAt time.Time) *Artifact {
	buf := bytes.Clone(data)
	sum := blake3.Sum256(buf)
	return &Artifact{
		data:        buf,
		createdAt:   createdAt,
		fingerprint: hex.EncodeToString(sum[:]),
	}
}

// Bytes returns a copy of the artifact content
func (a *Artifact) Bytes() []byte {
	return bytes.Clone(a.data)
}

// Size returns the content length in bytes
func (a *Artifact) Size() int {
	return len(a.data)
}

// CreatedAt returns when the artifact was generated
func (a *Artifact) CreatedAt() time.Time {
	return a.createdAt
}

// Fingerprint returns the hex BLAKE3 digest of the content
func (a *Artifact) Fingerprint() string {
	return a.fingerprint
}

// WriteTo streams the content to w without exposing the backing buffer
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}
