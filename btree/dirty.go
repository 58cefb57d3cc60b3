package btree

import "sort"

// dirtyBuffer is the unbounded staging area: every page mutated since the
// last flush lives here until flush persists it.
type dirtyBuffer struct {
	pages map[uint32]*Page
}

func newDirtyBuffer() *dirtyBuffer {
	return &dirtyBuffer{pages: make(map[uint32]*Page)}
}

func (d *dirtyBuffer) get(id uint32) (*Page, bool) {
	p, ok := d.pages[id]
	return p, ok
}

func (d *dirtyBuffer) put(page *Page) {
	page.dirty = true
	d.pages[page.ID] = page
}

func (d *dirtyBuffer) take(id uint32) (*Page, bool) {
	p, ok := d.pages[id]
	if ok {
		delete(d.pages, id)
	}
	return p, ok
}

func (d *dirtyBuffer) contains(id uint32) bool {
	_, ok := d.pages[id]
	return ok
}

func (d *dirtyBuffer) clear() {
	d.pages = make(map[uint32]*Page)
}

func (d *dirtyBuffer) len() int { return len(d.pages) }

// dirtyPageIterator walks the dirty buffer in ascending page-id order so
// flush writes pages deterministically (the order itself carries no
// correctness requirement, but determinism makes flush failures
// reproducible). Adapted from the original range-scan Iterator,
// repurposed here to iterate staged pages instead of live B-tree cells —
// there is no user-facing cursor here, only this internal one.
type dirtyPageIterator struct {
	pages []*Page
	pos   int
}

func (d *dirtyBuffer) iterator() *dirtyPageIterator {
	pages := make([]*Page, 0, len(d.pages))
	for _, p := range d.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return &dirtyPageIterator{pages: pages, pos: -1}
}

// Next advances the iterator and reports whether a page is available.
func (it *dirtyPageIterator) Next() bool {
	it.pos++
	return it.pos < len(it.pages)
}

// Page returns the page at the iterator's current position.
func (it *dirtyPageIterator) Page() *Page {
	return it.pages[it.pos]
}
