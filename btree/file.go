package btree

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/clamshell-db/kvbtree/common"
)

// pageFile is the on-disk page store's file lifecycle component: it owns
// the page file handle and knows how to place a page at offset
// PageSize*id. It is abstracted over afero.Fs, adopted from the ecosystem
// stack the pack carries (coredao-org-core-chain's dependency set pulls
// in spf13/afero indirectly) so tests can run against an in-memory
// filesystem while production uses the real one.
//
// Modeled on the original NewPager/createPager/loadPager trio, generalized
// to a metadata-free layout: the root always lives at id 0, offset 0,
// with no separate metadata page.
type pageFile struct {
	fs       afero.Fs
	file     afero.File
	path     string
	numPages uint32
}

// openPageFile opens path, creating it (with a single empty leaf root at
// id 0) if it does not already exist.
func openPageFile(fs afero.Fs, path string) (*pageFile, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "stat page file")
	}

	if !exists {
		return createPageFile(fs, path)
	}

	f, err := fs.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open page file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat page file")
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, errors.Wrap(common.ErrCorruptPage, "page file size is not a multiple of PageSize")
	}

	return &pageFile{
		fs:       fs,
		file:     f,
		path:     path,
		numPages: uint32(info.Size() / PageSize),
	}, nil
}

// createPageFile writes a fresh page file containing a single empty leaf
// root at id 0, offset 0.
func createPageFile(fs afero.Fs, path string) (*pageFile, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create page file")
	}

	pf := &pageFile{fs: fs, file: f, path: path}
	root := NewLeafPage(RootPageID)
	if err := pf.writePage(root); err != nil {
		f.Close()
		return nil, err
	}

	return pf, nil
}

// readPage loads page id's raw bytes and decodes them.
func (pf *pageFile) readPage(id uint32) (*Page, error) {
	if id >= pf.numPages {
		return nil, errors.Wrapf(common.ErrCorruptPage, "page %d out of bounds", id)
	}

	buf := make([]byte, PageSize)
	if _, err := pf.file.ReadAt(buf, int64(id)*PageSize); err != nil {
		return nil, errors.Wrapf(err, "read page %d", id)
	}

	page, err := DecodePage(buf)
	if err != nil {
		return nil, err
	}
	page.dirty = false
	return page, nil
}

// writePage persists page at its offset, growing the file if necessary.
func (pf *pageFile) writePage(page *Page) error {
	buf, err := page.Encode()
	if err != nil {
		return err
	}
	if _, err := pf.file.WriteAt(buf, int64(page.ID)*PageSize); err != nil {
		return errors.Wrapf(err, "write page %d", page.ID)
	}
	if page.ID+1 > pf.numPages {
		pf.numPages = page.ID + 1
	}
	return nil
}

// allocateID returns a fresh, monotonically increasing page id for a
// newly split-off node.
func (pf *pageFile) allocateID() uint32 {
	id := pf.numPages
	pf.numPages++
	return id
}

// size returns the current page file size in bytes.
func (pf *pageFile) size() (int64, error) {
	info, err := pf.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (pf *pageFile) sync() error {
	return pf.file.Sync()
}

func (pf *pageFile) close() error {
	return pf.file.Close()
}
