package btree

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// walOp discriminates write from delete records. Deletes are logged just
// like writes, using a leading discriminator byte ahead of the key/value
// pair, so a crash mid-delete is recovered the same way a crash mid-write
// is.
type walOp byte

const (
	walOpWrite  walOp = 0
	walOpDelete walOp = 1

	// walRecordSize is the on-disk size of one WAL record: 1 op byte +
	// key(2 LE) + val(2 LE).
	walRecordSize = 5
)

// walRecord is one logged mutation.
type walRecord struct {
	Op  walOp
	Key uint16
	Val uint16
}

// wal is the append-only crash-recovery log. Every mutation is appended
// here before any in-memory page is touched, so a crash between append
// and flush can always be repaired by replaying the tail on restart.
type wal struct {
	file    afero.File
	records int64
}

func openWAL(fs afero.Fs, path string) (*wal, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open wal")
	}
	return &wal{file: f}, nil
}

func encodeWALRecord(r walRecord) []byte {
	buf := make([]byte, walRecordSize)
	buf[0] = byte(r.Op)
	binary.LittleEndian.PutUint16(buf[1:3], r.Key)
	binary.LittleEndian.PutUint16(buf[3:5], r.Val)
	return buf
}

// appendWrite logs a pending write. Called before the in-memory tree is
// mutated.
func (w *wal) appendWrite(key, val uint16) error {
	return w.append(walRecord{Op: walOpWrite, Key: key, Val: val})
}

// appendDelete logs a pending delete.
func (w *wal) appendDelete(key uint16) error {
	return w.append(walRecord{Op: walOpDelete, Key: key})
}

func (w *wal) append(r walRecord) error {
	if _, err := w.file.Write(encodeWALRecord(r)); err != nil {
		return errors.Wrap(err, "append wal record")
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.records++
	return nil
}

// readAll decodes every record currently in the log, in append order.
// Modeled on the original WAL.ReadAll, stripped of the magic header and
// per-record CRC32 the original physical WAL carries: this format is
// bare fixed-width records, no header, no framing, no checksums.
func (w *wal) readAll() ([]walRecord, error) {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek wal")
	}

	it, err := newWALRecordIterator(w.file)
	if err != nil {
		return nil, err
	}

	var records []walRecord
	for it.Next() {
		records = append(records, it.Record())
	}
	return records, it.Err()
}

// truncate clears the log and rewinds it, called at the end of every
// successful flush.
func (w *wal) truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return errors.Wrap(err, "truncate wal")
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek wal")
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.records = 0
	return nil
}

// len reports the current WAL size in bytes.
func (w *wal) len() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *wal) close() error {
	return w.file.Close()
}

// walRecordIterator walks a WAL file's records front to back. Adapted
// from the original range-scan Iterator: the same seek-then-step shape,
// repointed at WAL replay instead of live B-tree cells — there is no
// user-facing cursor here, only this internal one.
type walRecordIterator struct {
	r    io.Reader
	buf  [walRecordSize]byte
	cur  walRecord
	err  error
	done bool
}

func newWALRecordIterator(r io.Reader) (*walRecordIterator, error) {
	return &walRecordIterator{r: r}, nil
}

// Next decodes the next record, reporting whether one was available.
func (it *walRecordIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	n, err := io.ReadFull(it.r, it.buf[:])
	if err != nil {
		it.done = true
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			it.err = err
		}
		return false
	}
	if n != walRecordSize {
		it.done = true
		return false
	}

	it.cur = walRecord{
		Op:  walOp(it.buf[0]),
		Key: binary.LittleEndian.Uint16(it.buf[1:3]),
		Val: binary.LittleEndian.Uint16(it.buf[3:5]),
	}
	return true
}

// Record returns the record at the iterator's current position.
func (it *walRecordIterator) Record() walRecord { return it.cur }

// Err returns any error encountered while iterating, excluding a clean
// end-of-file.
func (it *walRecordIterator) Err() error { return it.err }
