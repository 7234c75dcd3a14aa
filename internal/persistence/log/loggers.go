// Package log keeps the durable audit and trade history as hourly segments of
// zstd-compressed JSON lines.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"hearsay.ai/internal/sim/world"
)

const segmentLayout = "2006-01-02-15"

// segment is one open hour file.
type segment struct {
	hour string
	file *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, file: f, enc: enc, buf: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (s *segment) appendLine(b []byte) error {
	if _, err := s.buf.Write(b); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	return s.buf.Flush()
}

// close ends the zstd frame; the frame error is the one worth reporting.
func (s *segment) close() error {
	_ = s.buf.Flush()
	err := s.enc.Close()
	_ = s.file.Close()
	return err
}

// Stream appends entries of one type to <dir>/<name>-<hour>.jsonl.zst,
// starting a new segment when the UTC hour changes.
type Stream[T any] struct {
	dir  string
	name string
	now  func() time.Time

	mu      sync.Mutex
	cur     *segment
	written uint64
}

func NewStream[T any](dir, name string) *Stream[T] {
	return &Stream[T]{dir: dir, name: name, now: time.Now}
}

func (s *Stream[T]) Append(entry T) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hour := s.now().UTC().Format(segmentLayout)
	if s.cur == nil || s.cur.hour != hour {
		if err := s.closeLocked(); err != nil {
			return err
		}
		seg, err := openSegment(s.SegmentPath(hour), hour)
		if err != nil {
			return fmt.Errorf("%s: open segment %s: %w", s.name, hour, err)
		}
		s.cur = seg
	}
	if err := s.cur.appendLine(b); err != nil {
		return err
	}
	s.written++
	return nil
}

// Written counts entries appended since the stream was created.
func (s *Stream[T]) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *Stream[T]) SegmentPath(hour string) string {
	return filepath.Join(s.dir, s.name+"-"+hour+".jsonl.zst")
}

func (s *Stream[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Stream[T]) closeLocked() error {
	if s.cur == nil {
		return nil
	}
	err := s.cur.close()
	s.cur = nil
	return err
}

// AuditLogger records one entry per processed instant under <world>/audit.
type AuditLogger struct{ *Stream[world.AuditEntry] }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{NewStream[world.AuditEntry](filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.Append(e) }

// TradeLogger records every settled or cancelled trade under <world>/trades.
type TradeLogger struct{ *Stream[world.TradeLogEntry] }

func NewTradeLogger(worldDir string) *TradeLogger {
	return &TradeLogger{NewStream[world.TradeLogEntry](filepath.Join(worldDir, "trades"), "trades")}
}

func (l *TradeLogger) WriteTrade(e world.TradeLogEntry) error { return l.Append(e) }
