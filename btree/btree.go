package btree

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/clamshell-db/kvbtree/common"
)

// Config holds the tunables for Open. Kept deliberately small: unlike
// the original's Order/DataDir pair, key and value width and the page's
// branching factor are fixed constants of the format (see page.go), not
// runtime choices.
type Config struct {
	// CacheSize is the bounded read cache's capacity in pages.
	CacheSize int

	// Logger receives structural events (splits, merges, recovery).
	// A nil Logger is replaced with zap.NewNop().
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults: a small cache (this format's
// pages are tiny compared to the original's 128-order pages) and a no-op
// logger.
func DefaultConfig() Config {
	return Config{
		CacheSize: DefaultCacheSize,
		Logger:    zap.NewNop(),
	}
}

// Engine is the single-threaded B-tree key-value engine. It satisfies
// common.KVEngine.
type Engine struct {
	cfg    Config
	store  *store
	wal    *wal
	guard  *guard
	logger *zap.Logger
	closed bool

	stats common.Stats
}

var _ common.KVEngine = (*Engine)(nil)

// Open opens (creating if absent) the page file at pagePath and the WAL
// at walPath, replaying any pending WAL records before returning.
func Open(fs afero.Fs, pagePath, walPath string, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pf, err := openPageFile(fs, pagePath)
	if err != nil {
		return nil, err
	}

	w, err := openWAL(fs, walPath)
	if err != nil {
		pf.close()
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		store:  newStore(pf, cfg.CacheSize),
		wal:    w,
		guard:  newGuard(),
		logger: cfg.Logger,
	}

	if err := e.recover(); err != nil {
		w.close()
		pf.close()
		return nil, err
	}

	e.stats.NumPages = pf.numPages
	return e, nil
}

// recover replays every record left in the WAL from a prior crash,
// flushes the result, and truncates the log. A clean shutdown always
// leaves the WAL empty, so an empty log makes this a no-op.
func (e *Engine) recover() error {
	records, err := e.wal.readAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	e.logger.Info("replaying wal", zap.Int("records", len(records)))

	for _, r := range records {
		switch r.Op {
		case walOpWrite:
			if _, err := e.applyWrite(r.Key, r.Val); err != nil {
				return errors.Wrap(err, "replay write")
			}
		case walOpDelete:
			if err := e.applyDelete(r.Key); err != nil {
				return errors.Wrap(err, "replay delete")
			}
		}
	}

	if err := e.store.flush(); err != nil {
		return errors.Wrap(err, "flush recovered pages")
	}
	return e.wal.truncate()
}

// Write inserts or updates the mapping for key.
func (e *Engine) Write(key, val uint16) error {
	e.guard.enter()
	defer e.guard.exit()

	if e.closed {
		return common.ErrEngineClosed
	}

	if err := e.wal.appendWrite(key, val); err != nil {
		return err
	}

	inserted, err := e.applyWrite(key, val)
	if err != nil {
		return err
	}
	if inserted {
		e.stats.NumKeys++
	}
	e.stats.WriteCount++
	e.stats.NumPages = e.store.file.numPages
	return nil
}

// Read returns the value for key and whether it was present. Read has no
// error return to report a closed engine through, so — like a reentrant
// call — reading after Close panics rather than silently running against
// released file handles.
func (e *Engine) Read(key uint16) (uint16, bool) {
	e.guard.enter()
	defer e.guard.exit()

	if e.closed {
		panic(common.ErrEngineClosed)
	}

	e.stats.ReadCount++

	pageID := uint32(RootPageID)
	for {
		page, err := e.store.get(pageID)
		if err != nil {
			return 0, false
		}
		if page.IsLeaf {
			idx := search(page.Keys, key)
			if idx < len(page.Keys) && page.Keys[idx] == key {
				return page.Vals[idx], true
			}
			return 0, false
		}
		pageID = page.Children[childForKey(page, key)]
	}
}

// Delete removes the mapping for key, if present.
func (e *Engine) Delete(key uint16) error {
	e.guard.enter()
	defer e.guard.exit()

	if e.closed {
		return common.ErrEngineClosed
	}

	if err := e.wal.appendDelete(key); err != nil {
		return err
	}

	removed, err := e.applyDeleteReporting(key)
	if err != nil {
		return err
	}
	if removed {
		e.stats.NumKeys--
	}
	e.stats.DeleteCount++
	e.stats.NumPages = e.store.file.numPages
	return nil
}

// Flush persists all dirty pages and truncates the WAL.
func (e *Engine) Flush() error {
	e.guard.enter()
	defer e.guard.exit()

	if e.closed {
		return common.ErrEngineClosed
	}
	return e.doFlush()
}

func (e *Engine) doFlush() error {
	if err := e.store.flush(); err != nil {
		return err
	}
	if err := e.wal.truncate(); err != nil {
		return err
	}
	e.stats.FlushCount++
	return nil
}

// Close flushes and releases the underlying file handles. Close is
// idempotent: a second call after the engine is already closed is a
// no-op, the same way the teacher's Close tolerated being called twice.
func (e *Engine) Close() error {
	e.guard.enter()
	defer e.guard.exit()

	if e.closed {
		return nil
	}

	if err := e.doFlush(); err != nil {
		return err
	}
	if err := e.wal.close(); err != nil {
		return err
	}
	if err := e.store.file.close(); err != nil {
		return err
	}
	e.closed = true
	return nil
}

// Stats returns point-in-time engine statistics.
func (e *Engine) Stats() common.Stats {
	e.guard.enter()
	defer e.guard.exit()

	s := e.stats
	s.NumPages = e.store.file.numPages
	s.CacheHits = e.store.cacheHits
	s.CacheMisses = e.store.cacheMisses
	s.WALRecords = e.wal.records
	return s
}

// descend walks from the root to the leaf that would hold key, recording
// each step so a subsequent split or merge can propagate back up without
// re-searching.
func (e *Engine) descend(key uint16) ([]descentFrame, error) {
	stack := []descentFrame{{pageID: RootPageID, childIdx: -1}}
	for {
		page, err := e.store.get(stack[len(stack)-1].pageID)
		if err != nil {
			return nil, err
		}
		if page.IsLeaf {
			return stack, nil
		}
		idx := childForKey(page, key)
		stack = append(stack, descentFrame{pageID: page.Children[idx], childIdx: idx})
	}
}

// applyWrite inserts or updates (key, val) in the tree itself (the WAL
// record, if any, is already durable by the time this runs). It reports
// whether a new key was inserted, as opposed to an existing one updated.
func (e *Engine) applyWrite(key, val uint16) (bool, error) {
	stack, err := e.descend(key)
	if err != nil {
		return false, err
	}

	leaf, err := e.store.take(stack[len(stack)-1].pageID)
	if err != nil {
		return false, err
	}

	idx := search(leaf.Keys, key)
	if idx < len(leaf.Keys) && leaf.Keys[idx] == key {
		leaf.Vals[idx] = val
		e.store.deposit(leaf)
		return false, nil
	}

	leaf.Keys = insertUint16At(leaf.Keys, idx, key)
	leaf.Vals = insertUint16At(leaf.Vals, idx, val)

	if !leaf.Full() {
		e.store.deposit(leaf)
		return true, nil
	}

	e.logger.Debug("leaf overflow", zap.Uint32("page", leaf.ID))
	return true, e.rebalanceOverflow(stack, leaf)
}

// rebalanceOverflow splits full and propagates the resulting separator
// up the descent stack, splitting ancestors in turn until one has room,
// or until the root itself must grow a new level.
func (e *Engine) rebalanceOverflow(stack []descentFrame, full *Page) error {
	var (
		result *splitResult
		err    error
	)
	if full.IsLeaf {
		result, err = e.splitLeaf(full)
	} else {
		result, err = e.splitInternal(full)
	}
	if err != nil {
		return err
	}

	for i := len(stack) - 1; i > 0; i-- {
		parent, err := e.store.take(stack[i-1].pageID)
		if err != nil {
			return err
		}

		pos := search(parent.Keys, result.Separator)
		parent.Keys = insertUint16At(parent.Keys, pos, result.Separator)
		parent.Children = insertUint32At(parent.Children, pos+1, result.RightID)

		if !parent.Full() {
			e.store.deposit(parent)
			return nil
		}

		e.logger.Debug("internal overflow", zap.Uint32("page", parent.ID))
		result, err = e.splitInternal(parent)
		if err != nil {
			return err
		}
	}

	return e.growRoot(result)
}

// growRoot handles a split that reached the root: the root's old
// content (already split into a left and right half by the caller) is
// relocated off page id 0 to a freshly allocated id, freeing id 0 for a
// brand-new one-key root that points at both halves. The root must
// always live at id 0, so this renumbering — rather than allocating the
// new root at a fresh id — is what keeps that invariant.
func (e *Engine) growRoot(result *splitResult) error {
	oldRoot, err := e.store.take(RootPageID)
	if err != nil {
		return err
	}

	newID := e.store.file.allocateID()
	oldRoot.ID = newID
	e.store.deposit(oldRoot)

	root := NewInternalPage(RootPageID)
	root.Keys = []uint16{result.Separator}
	root.Children = []uint32{newID, result.RightID}
	e.store.deposit(root)

	e.logger.Debug("root grew a level", zap.Uint32("left", newID), zap.Uint32("right", result.RightID))
	return nil
}

// applyDeleteReporting deletes key and reports whether it was present.
func (e *Engine) applyDeleteReporting(key uint16) (bool, error) {
	stack, err := e.descend(key)
	if err != nil {
		return false, err
	}

	leaf, err := e.store.take(stack[len(stack)-1].pageID)
	if err != nil {
		return false, err
	}

	idx := search(leaf.Keys, key)
	if idx >= len(leaf.Keys) || leaf.Keys[idx] != key {
		e.store.deposit(leaf)
		return false, nil
	}

	leaf.Keys = removeUint16At(leaf.Keys, idx)
	leaf.Vals = removeUint16At(leaf.Vals, idx)
	e.store.deposit(leaf)

	if leaf.ID == RootPageID || !leaf.Underflowing() {
		return true, nil
	}

	e.logger.Debug("leaf underflow", zap.Uint32("page", leaf.ID))
	if err := e.rebalanceUnderflow(stack); err != nil {
		return true, err
	}
	return true, e.shrinkRootIfNeeded()
}

// applyDelete is applyDeleteReporting without the presence report, used
// during WAL replay where the outcome doesn't matter.
func (e *Engine) applyDelete(key uint16) error {
	_, err := e.applyDeleteReporting(key)
	return err
}

// shrinkRootIfNeeded collapses the root by one level when a merge has
// left it as an empty internal page with a single child: that child
// becomes the new root, again by renumbering it onto page id 0.
func (e *Engine) shrinkRootIfNeeded() error {
	root, err := e.store.take(RootPageID)
	if err != nil {
		return err
	}
	if root.IsLeaf || len(root.Keys) > 0 || len(root.Children) != 1 {
		e.store.deposit(root)
		return nil
	}

	onlyChild, err := e.store.take(root.Children[0])
	if err != nil {
		return err
	}

	onlyChild.ID = RootPageID
	e.store.deposit(onlyChild)

	e.logger.Debug("root shrank a level")
	return nil
}
