package btree

// store unifies the dirty buffer, the LRU cache, and the on-disk page
// file under a single lookup contract. Lookup order is always dirty
// buffer → cache → disk; a disk hit fills the cache. Because only clean
// pages ever enter the cache, and a page entering the dirty buffer is
// always first removed from the cache via take, no page is ever resident
// in both tiers at once.
type store struct {
	dirty *dirtyBuffer
	cache *pageCache
	file  *pageFile

	cacheHits   int64
	cacheMisses int64
}

func newStore(file *pageFile, cacheSize int) *store {
	return &store{
		dirty: newDirtyBuffer(),
		cache: newPageCache(cacheSize),
		file:  file,
	}
}

// get returns a read-only view of page id, filling the cache on a disk
// miss. Only a true disk read counts as a cache miss; a dirty-buffer hit
// never touched the cache in the first place, so it's neither a hit nor
// a miss.
func (s *store) get(id uint32) (*Page, error) {
	if p, ok := s.dirty.get(id); ok {
		return p, nil
	}
	if p, ok := s.cache.get(id); ok {
		s.cacheHits++
		return p, nil
	}

	s.cacheMisses++
	p, err := s.file.readPage(id)
	if err != nil {
		return nil, err
	}
	s.cache.insert(id, p)
	return p, nil
}

// take moves page id out of whichever tier owns it and returns it to the
// caller, who is expected to mutate it and deposit it back into the dirty
// buffer. This is the ownership-transfer linchpin that prevents a page
// from being simultaneously resident in two tiers.
func (s *store) take(id uint32) (*Page, error) {
	if p, ok := s.dirty.take(id); ok {
		return p, nil
	}
	if p, ok := s.cache.take(id); ok {
		return p, nil
	}
	return s.file.readPage(id)
}

// deposit re-inserts a mutated page into the dirty buffer, the only tier a
// mutated page may live in until flush.
func (s *store) deposit(page *Page) {
	s.cache.remove(page.ID)
	s.dirty.put(page)
}

// allocateLeaf and allocateInternal reserve a fresh page id and deposit a
// freshly created node (born by a split) straight into the dirty buffer.
func (s *store) allocateLeaf() *Page {
	id := s.file.allocateID()
	p := NewLeafPage(id)
	s.deposit(p)
	return p
}

func (s *store) allocateInternal() *Page {
	id := s.file.allocateID()
	p := NewInternalPage(id)
	s.deposit(p)
	return p
}

// discard drops page id from the dirty buffer and cache without writing
// it back, used when a merge frees a page. The abandoned on-disk slot is
// never reused; there is no free list.
func (s *store) discard(id uint32) {
	s.dirty.take(id)
	s.cache.remove(id)
}

// flush writes every dirty page to the page file, then clears the dirty
// buffer. Iterates in ascending page-id order via dirtyPageIterator for
// deterministic failure reproduction.
func (s *store) flush() error {
	it := s.dirty.iterator()
	for it.Next() {
		if err := s.file.writePage(it.Page()); err != nil {
			return err
		}
	}
	s.dirty.clear()
	return s.file.sync()
}
