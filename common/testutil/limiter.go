package testutil

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/afero"
)

// QuotaFs wraps an afero.Fs and fails writes once a byte budget is
// exhausted, standing in for a full disk so tests can exercise the
// engine's I/O-error path deterministically.
type QuotaFs struct {
	afero.Fs
	budget atomic.Int64
}

// NewQuotaFs wraps fs with a write budget of n bytes.
func NewQuotaFs(fs afero.Fs, n int64) *QuotaFs {
	q := &QuotaFs{Fs: fs}
	q.budget.Store(n)
	return q
}

// AddBudget increases the remaining write budget by n bytes, simulating
// disk space freed up before a retry.
func (q *QuotaFs) AddBudget(n int64) {
	q.budget.Add(n)
}

// OpenFile intercepts writable opens so every write against the returned
// file is charged against the quota.
func (q *QuotaFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := q.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &quotaFile{File: f, q: q}, nil
}

type quotaFile struct {
	afero.File
	q *QuotaFs
}

func (f *quotaFile) charge(n int) error {
	if f.q.budget.Add(-int64(n)) < 0 {
		f.q.budget.Add(int64(n))
		return io.ErrShortWrite
	}
	return nil
}

func (f *quotaFile) Write(p []byte) (int, error) {
	if err := f.charge(len(p)); err != nil {
		return 0, err
	}
	return f.File.Write(p)
}

func (f *quotaFile) WriteAt(p []byte, off int64) (int, error) {
	if err := f.charge(len(p)); err != nil {
		return 0, err
	}
	return f.File.WriteAt(p, off)
}
