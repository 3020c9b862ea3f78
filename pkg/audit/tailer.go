// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/janee-ai/janee/pkg/logger"
)

// Tail follows the audit trail from now on, yielding events as they are
// appended. The returned channel closes when ctx is cancelled. Rotation at
// midnight UTC is handled by advancing to the new day's file.
func (l *Logger) Tail(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go l.tailLoop(ctx, ch)
	return ch
}

func (l *Logger) tailLoop(ctx context.Context, ch chan<- Event) {
	defer close(ch)

	date := l.now().UTC().Format(dateLayout)

	// Start at the current end of file so only new events are emitted.
	var offset int64
	if info, err := os.Stat(l.pathForDate(date)); err == nil {
		offset = info.Size()
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		offset, pending = l.drain(ctx, ch, date, offset, pending)

		if current := l.now().UTC().Format(dateLayout); current != date {
			// Flush stragglers from the old file, then roll over.
			l.drain(ctx, ch, date, offset, pending)
			date = current
			offset = 0
			pending = nil
		}
	}
}

// drain reads everything appended past offset and emits complete lines.
// Returns the new offset and any trailing partial line.
func (l *Logger) drain(
	ctx context.Context, ch chan<- Event, date string, offset int64, pending []byte,
) (int64, []byte) {
	f, err := os.Open(l.pathForDate(date))
	if err != nil {
		// The day's file may not exist yet.
		return offset, pending
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, pending
	}

	size := info.Size()
	if size < offset {
		// File shrank underneath us; start over from the top.
		offset = 0
		pending = nil
	}
	if size == offset {
		return offset, pending
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, pending
	}

	buf := make([]byte, size-offset)
	n, err := io.ReadFull(f, buf)
	if n == 0 && err != nil {
		return offset, pending
	}
	offset += int64(n)
	pending = append(pending, buf[:n]...)

	for {
		idx := bytes.IndexByte(pending, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(pending[:idx])
		pending = pending[idx+1:]
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warnf("Skipping malformed audit line: %v", err)
			continue
		}

		select {
		case ch <- ev:
		case <-ctx.Done():
			return offset, pending
		}
	}

	return offset, pending
}
