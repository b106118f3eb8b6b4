package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// defaultChunkSize bounds a single read from the upstream body. A read returns
// as soon as any bytes are available, so this never delays forwarding.
const defaultChunkSize = 32 * 1024

// ErrDestinationWrite wraps a failure to write a chunk to the destination
// writer, typically because the downstream client went away.
var ErrDestinationWrite = errors.New("writing chunk to destination")

// TeeRecorder reads raw chunks from a source io.Reader, writes each chunk
// verbatim to a destination io.Writer and keeps a copy of every byte read.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeRecorder.Next │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  recorded bytes  │
// └──────────────────┘
//
// Unlike a line scanner, the recorder never re-frames the stream: the
// destination sees exactly the chunks the source produced, in order, so line
// terminators and partial lines spanning chunk boundaries pass through intact.
// Parsing happens later over Bytes, once the stream is complete.
type TeeRecorder struct {
	src   io.Reader
	dest  io.Writer
	chunk []byte
	buf   bytes.Buffer

	// detached is set once a destination write fails. Later chunks are still
	// recorded but no longer written.
	detached bool
}

// NewTeeRecorder returns a TeeRecorder that forwards src to dest.
// The dest writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewTeeRecorder(src io.Reader, dest io.Writer) *TeeRecorder {
	return &TeeRecorder{
		src:   src,
		dest:  dest,
		chunk: make([]byte, defaultChunkSize),
	}
}

// Next reads the next chunk from the source, forwards it to the destination and
// then records it. It returns the number of bytes read.
//
// Next returns io.EOF once the source is exhausted. A destination failure is
// returned wrapped in ErrDestinationWrite after the chunk has been recorded;
// any other error comes from the source.
func (r *TeeRecorder) Next() (int, error) {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		chunk := r.chunk[:n]

		var werr error
		if !r.detached {
			if _, werr = r.dest.Write(chunk); werr != nil {
				r.detached = true
			}
		}

		r.buf.Write(chunk)

		if werr != nil {
			return n, fmt.Errorf("%w: %w", ErrDestinationWrite, werr)
		}
	}

	if err != nil {
		return n, err
	}

	return n, nil
}

// Bytes returns every byte read from the source so far. The slice is only
// valid until the next call to Next.
func (r *TeeRecorder) Bytes() []byte {
	return r.buf.Bytes()
}

// Len returns the number of bytes recorded so far.
func (r *TeeRecorder) Len() int {
	return r.buf.Len()
}
