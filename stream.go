// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// StreamOptions configures OpenReadStream/OpenWriteStream.
type StreamOptions struct {
	// ChunkSize is the unit of work handed to the background goroutine
	// on each iteration. 0 means DefaultChunkSize.
	ChunkSize int
	// HighWaterMark bounds the number of unconsumed chunks the
	// background goroutine is allowed to run ahead by, per spec.md
	// §4.9's bounded-buffering requirement. 0 means DefaultHighWaterMark.
	HighWaterMark int
}

const (
	DefaultChunkSize     = 64 * 1024
	DefaultHighWaterMark = 4
)

func (o StreamOptions) withDefaults() StreamOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HighWaterMark <= 0 {
		o.HighWaterMark = DefaultHighWaterMark
	}
	return o
}

// ReadStream sequentially reads a file's bytes off the caller's
// goroutine: a producer goroutine, coordinated by an errgroup.Group,
// runs ahead decrypting and reading blocks into a bounded channel of
// chunks while Read drains it. The first read error the producer hits
// is captured by the errgroup; once the buffered chunks are drained,
// every later Read returns it, and Close returns it again.
type ReadStream struct {
	e   *EFS
	fd  int
	eg  *errgroup.Group
	ctx context.Context

	chunks chan []byte
	cur    []byte
	cancel context.CancelFunc
}

// OpenReadStream opens path read-only and returns a ReadStream over
// it. The descriptor is owned by the stream and is closed by Close.
func (e *EFS) OpenReadStream(path string, opts StreamOptions) (*ReadStream, error) {
	opts = opts.withDefaults()
	fd, err := e.OpenFile(path, ORDONLY, 0)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	rs := &ReadStream{
		e:      e,
		fd:     fd,
		eg:     g,
		ctx:    gctx,
		cancel: cancel,
		chunks: make(chan []byte, opts.HighWaterMark),
	}

	g.Go(func() error {
		defer close(rs.chunks)
		var pos int64
		buf := make([]byte, opts.ChunkSize)
		for {
			n, err := e.ReadAt(fd, buf, pos)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case rs.chunks <- chunk:
				case <-gctx.Done():
					return gctx.Err()
				}
				pos += int64(n)
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	return rs, nil
}

// Read implements io.Reader, draining chunks the background goroutine
// has already decrypted and read ahead.
func (rs *ReadStream) Read(p []byte) (int, error) {
	if len(rs.cur) == 0 {
		chunk, ok := <-rs.chunks
		if !ok {
			if err := rs.eg.Wait(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		rs.cur = chunk
	}
	n := copy(p, rs.cur)
	rs.cur = rs.cur[n:]
	return n, nil
}

// Close stops the background goroutine, returning its first read
// error (if any) alongside whatever the underlying descriptor close
// reports. The cancellation Close itself causes is not reported.
func (rs *ReadStream) Close() error {
	rs.cancel()
	for range rs.chunks {
		// drain so the producer's send doesn't block forever on a
		// caller that closes before reaching EOF.
	}
	err := rs.eg.Wait()
	if err == context.Canceled {
		err = nil
	}
	if cerr := rs.e.CloseFile(rs.fd); err == nil {
		err = cerr
	}
	return err
}

// writeJob is one pending write handed from Write to the background
// consumer goroutine.
type writeJob struct {
	pos  int64
	data []byte
}

// WriteStream sequentially writes to a file off the caller's
// goroutine: Write enqueues a chunk (blocking once HighWaterMark
// chunks are outstanding, bounding memory) and a consumer goroutine,
// coordinated by an errgroup.Group, performs the encrypted WriteAt
// calls. Once the first write error has stopped the consumer, every
// later Write is rejected immediately with that error, and Close
// returns it again.
type WriteStream struct {
	e   *EFS
	fd  int
	eg  *errgroup.Group
	ctx context.Context

	jobs   chan writeJob
	pos    int64
	cancel context.CancelFunc
}

// OpenWriteStream opens path per flags (OCREAT/OTRUNC/OAPPEND are
// honored as in OpenFile) and returns a WriteStream over it.
func (e *EFS) OpenWriteStream(path string, flags OpenFlag, mode uint32, opts StreamOptions) (*WriteStream, error) {
	opts = opts.withDefaults()
	fd, err := e.OpenFile(path, flags, mode)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	ws := &WriteStream{
		e:      e,
		fd:     fd,
		eg:     g,
		ctx:    gctx,
		cancel: cancel,
		jobs:   make(chan writeJob, opts.HighWaterMark),
	}

	g.Go(func() error {
		for job := range ws.jobs {
			pos := job.pos
			if flags&OAPPEND != 0 {
				pos = -1 // write at the descriptor's position, which OAPPEND pins to the end
			}
			if _, err := e.WriteAt(fd, job.data, pos); err != nil {
				return err
			}
		}
		return nil
	})

	return ws, nil
}

// Write implements io.Writer. It copies p (the caller's buffer may be
// reused immediately after Write returns) and hands it to the
// consumer goroutine, blocking once HighWaterMark writes are already
// queued.
func (ws *WriteStream) Write(p []byte) (int, error) {
	if ws.ctx.Err() != nil {
		return 0, ws.eg.Wait()
	}
	data := make([]byte, len(p))
	copy(data, p)
	job := writeJob{pos: ws.pos, data: data}

	select {
	case ws.jobs <- job:
		ws.pos += int64(len(p))
		return len(p), nil
	case <-ws.ctx.Done():
		return 0, ws.eg.Wait()
	}
}

// Close waits for every queued write to complete, returning the first
// write error (if any) alongside whatever the underlying descriptor
// close reports.
func (ws *WriteStream) Close() error {
	close(ws.jobs)
	err := ws.eg.Wait()
	if cerr := ws.e.CloseFile(ws.fd); err == nil {
		err = cerr
	}
	return err
}
