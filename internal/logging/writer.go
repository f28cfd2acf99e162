package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// RotatingWriter は日付ごとにファイルを切り替える io.Writer です。
// ファイル名は <base>.<YYYY-MM-DD><ext> になります。
// 当日のファイルに加えて直近 retention 日分を残し、それより古いファイルは削除します。
type RotatingWriter struct {
	mu        sync.Mutex
	dir       string
	base      string
	ext       string
	retention int
	now       func() time.Time

	file *os.File
	day  string
}

// NewRotatingWriter は RotatingWriter を作成し、当日のファイルを開きます。
// retentionDays が 0 の場合は古いファイルを削除しません。
func NewRotatingWriter(dir, filename string, retentionDays int) (*RotatingWriter, error) {
	return newRotatingWriter(dir, filename, retentionDays, time.Now)
}

func newRotatingWriter(dir, filename string, retentionDays int, now func() time.Time) (*RotatingWriter, error) {
	if filename == "" {
		return nil, errors.New("log filename is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".log"
	}
	w := &RotatingWriter{
		dir:       dir,
		base:      strings.TrimSuffix(filename, filepath.Ext(filename)),
		ext:       ext,
		retention: retentionDays,
		now:       now,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateLocked(now().Format(dateLayout)); err != nil {
		return nil, err
	}
	return w, nil
}

// Write は日付が変わっていればファイルを切り替えてから書き込みます。
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if day := w.now().Format(dateLayout); day != w.day || w.file == nil {
		if err := w.rotateLocked(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

// Close は現在のファイルを閉じます。
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CurrentPath は書き込み中のファイルパスを返します。
func (w *RotatingWriter) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pathFor(w.day)
}

func (w *RotatingWriter) pathFor(day string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s.%s%s", w.base, day, w.ext))
}

func (w *RotatingWriter) rotateLocked(day string) error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	f, err := os.OpenFile(w.pathFor(day), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.day = day
	w.pruneLocked()
	return nil
}

func (w *RotatingWriter) pruneLocked() {
	if w.retention <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(w.dir, w.base+".*"+w.ext))
	if err != nil {
		return
	}

	current, err := time.Parse(dateLayout, w.day)
	if err != nil {
		return
	}
	cutoff := current.AddDate(0, 0, -w.retention)

	prefix := w.base + "."
	for _, path := range matches {
		name := filepath.Base(path)
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), w.ext)
		day, err := time.Parse(dateLayout, stamp)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}

// AsyncWriter はログの書き込みをバックグラウンドの goroutine に委ねます。
// リクエスト処理がファイル I/O で待たされないようにするためのものです。
type AsyncWriter struct {
	out  io.Writer
	ch   chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncWriter は AsyncWriter を作成します。buffer はキューに保持する行数です。
func NewAsyncWriter(out io.Writer, buffer int) *AsyncWriter {
	if buffer <= 0 {
		buffer = 1024
	}
	w := &AsyncWriter{
		out:  out,
		ch:   make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Write は p を複製してキューに積みます。
func (w *AsyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return 0, os.ErrClosed
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	w.ch <- buf
	return len(p), nil
}

// Close はキューに残った行をすべて書き出してから終了します。
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	<-w.done
	return nil
}

func (w *AsyncWriter) loop() {
	defer close(w.done)
	for line := range w.ch {
		if _, err := w.out.Write(line); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
		}
	}
}
