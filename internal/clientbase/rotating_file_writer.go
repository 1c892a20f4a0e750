// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package clientbase

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogNamePrefix = Namespace
	defaultFileSizeMaxKb = int64(1024)
	defaultFileCountMax  = 100
	traceFileExt         = ".jsonl"
)

type writerConfig struct {
	FolderPath    string
	LogNamePrefix string
	FileSizeMaxKb int64
	FileCountMax  int
}

// WriterOption configures a RotatingFileWriter.
type WriterOption func(*writerConfig)

// WithFolderPath sets the folder trace files are written to. Defaults to
// <user config dir>/mysqlgo/traces.
func WithFolderPath(path string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.FolderPath = path
	}
}

func WithLogNamePrefix(prefix string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.LogNamePrefix = prefix
	}
}

// WithFileSizeMaxKb sets the size at which a file is rotated. Values below
// the default are raised to it.
func WithFileSizeMaxKb(kb int64) WriterOption {
	return func(cfg *writerConfig) {
		cfg.FileSizeMaxKb = kb
	}
}

// WithFileCountMax sets how many files are kept. Values below the default
// are raised to it.
func WithFileCountMax(n int) WriterOption {
	return func(cfg *writerConfig) {
		cfg.FileCountMax = n
	}
}

func newWriterConfig(options ...WriterOption) (cfg writerConfig, err error) {
	cfg = writerConfig{
		LogNamePrefix: defaultLogNamePrefix,
		FileSizeMaxKb: defaultFileSizeMaxKb,
		FileCountMax:  defaultFileCountMax,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.FolderPath) == "" {
		if cfg.FolderPath, err = defaultFolderPath(); err != nil {
			return
		}
	}
	if strings.TrimSpace(cfg.LogNamePrefix) == "" {
		cfg.LogNamePrefix = defaultLogNamePrefix
	}
	if err = os.MkdirAll(cfg.FolderPath, 0755); err != nil {
		return
	}

	// fail early if the folder is not writable
	probe, err := os.CreateTemp(cfg.FolderPath, cfg.LogNamePrefix)
	if err != nil {
		return
	}
	defer func() {
		_ = probe.Close()
		_ = os.Remove(probe.Name())
	}()
	if _, err = probe.WriteString("file started"); err != nil {
		return
	}

	cfg.FileSizeMaxKb = max(defaultFileSizeMaxKb, cfg.FileSizeMaxKb)
	cfg.FileCountMax = max(defaultFileCountMax, cfg.FileCountMax)
	return
}

func defaultFolderPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, Namespace, "traces"), nil
}

// RotatingFileWriter appends to "<prefix>-<UTC timestamp>.jsonl" files in
// a folder. Once the current file reaches FileSizeMaxKb a new one is
// started, and the oldest files beyond FileCountMax are removed. An
// existing file that is not yet full is reused.
type RotatingFileWriter struct {
	mu sync.Mutex

	FolderPath    string
	LogNamePrefix string
	FileSizeMaxKb int64
	FileCountMax  int

	current *os.File
}

func NewRotatingFileWriter(options ...WriterOption) (*RotatingFileWriter, error) {
	cfg, err := newWriterConfig(options...)
	if err != nil {
		return nil, err
	}
	return &RotatingFileWriter{
		FolderPath:    cfg.FolderPath,
		LogNamePrefix: cfg.LogNamePrefix,
		FileSizeMaxKb: cfg.FileSizeMaxKb,
		FileCountMax:  cfg.FileCountMax,
	}, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.maybeRotate(); err != nil {
		return 0, err
	}
	if err := w.ensureCurrent(); err != nil {
		return 0, err
	}
	return w.current.Write(p)
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

// Clear closes the writer and removes every file it owns.
func (w *RotatingFileWriter) Clear() error {
	if err := w.Close(); err != nil {
		return err
	}
	files, err := w.files()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

func (w *RotatingFileWriter) Stat() (fs.FileInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, errors.New("no trace file is open")
	}
	return w.current.Stat()
}

func (w *RotatingFileWriter) maxBytes() int64 { return w.FileSizeMaxKb * 1024 }

func (w *RotatingFileWriter) maybeRotate() error {
	if w.current == nil {
		return nil
	}
	info, err := w.current.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.maxBytes() {
		return nil
	}
	if err := w.current.Close(); err != nil {
		return err
	}
	w.current = nil
	return w.removeOldFiles()
}

func (w *RotatingFileWriter) ensureCurrent() error {
	// 0666 so the file can be reopened on Windows
	const perm = 0666
	if w.current != nil {
		return nil
	}
	if path, ok := w.candidate(); ok {
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, perm); err == nil {
			w.current = f
			return nil
		}
	}
	stamp := time.Now().UTC().Format("2006-01-02-15-04-05.000000000")
	path := filepath.Join(w.FolderPath, w.LogNamePrefix+"-"+stamp+traceFileExt)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	w.current = f
	return nil
}

// candidate returns the newest file if it still has room.
func (w *RotatingFileWriter) candidate() (string, bool) {
	files, err := w.files()
	if err != nil || len(files) == 0 {
		return "", false
	}
	last := files[len(files)-1]
	info, err := os.Stat(last)
	if err != nil || info.Size() >= w.maxBytes() {
		return "", false
	}
	return last, true
}

func (w *RotatingFileWriter) removeOldFiles() error {
	files, err := w.files()
	if err != nil {
		return nil
	}
	if extra := len(files) - w.FileCountMax; extra > 0 {
		for _, path := range files[:extra] {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// files lists the writer's files; filepath.Glob sorts them, so by
// timestamp.
func (w *RotatingFileWriter) files() ([]string, error) {
	return filepath.Glob(filepath.Join(w.FolderPath, w.LogNamePrefix+"*"+traceFileExt))
}
