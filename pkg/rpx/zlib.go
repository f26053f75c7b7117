package rpx

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// decompressSection inflates a zlib-wrapped section payload into exactly
// uncompressedSize bytes, mirroring DecompressSection's behavior against
// zlib's uncompress(): the on-disk bytes are a complete zlib stream with no
// extra length prefix. Unlike the original, a failed inflate is surfaced as
// an error rather than silently zero-filling the section — callers that
// want the original's tolerant behavior can fall back to a zeroed buffer
// themselves.
func decompressSection(compressed []byte, uncompressedSize uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Wrap(err, "opening zlib stream")
	}
	defer r.Close()

	out := make([]byte, uncompressedSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(err, "inflating section (got %d/%d bytes)", n, uncompressedSize)
	}
	if uint32(n) != uncompressedSize {
		log.Warnf("section inflated to %d bytes, expected %d", n, uncompressedSize)
	}
	return out, nil
}
