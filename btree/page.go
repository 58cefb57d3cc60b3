package btree

import (
	"encoding/binary"

	"github.com/clamshell-db/kvbtree/common"
)

const (
	// PageSize is the fixed on-disk size of every page, matching the OS
	// page size.
	PageSize = 4096

	// BranchingFactor bounds the number of keys a node may hold before a
	// split is required. A node is full the instant NumKeys reaches
	// BranchingFactor; it must be split before it is observed on disk
	// again.
	BranchingFactor = 5

	// MaxKeys is the soft maximum number of keys a node may carry between
	// mutations.
	MaxKeys = BranchingFactor - 1

	// MinKeys is the minimum live key count for a non-root node before an
	// underflow rebalance is triggered: ceil((BranchingFactor-1)/2).
	MinKeys = 2

	// RootPageID is the page id that always holds the current root.
	RootPageID = uint32(0)

	headerSize  = 7 // id(4) + isLeaf(1) + numKeys(2)
	keyWidth    = 2
	valWidth    = 2
	childWidth  = 4
)

// Page represents one B-tree node, serialized to exactly PageSize bytes.
//
// Layout: id(4 LE) | isLeaf(1) | numKeys(2 LE) | keys(numKeys*2) |
// vals(numKeys*2) for a leaf, or children((numKeys+1)*4) for an internal
// node | zero padding to PageSize.
type Page struct {
	ID       uint32
	IsLeaf   bool
	Keys     []uint16
	Vals     []uint16 // leaf only, parallel to Keys
	Children []uint32 // internal only, len == len(Keys)+1
	dirty    bool
}

// NewLeafPage creates an empty leaf page with the given id.
func NewLeafPage(id uint32) *Page {
	return &Page{ID: id, IsLeaf: true, dirty: true}
}

// NewInternalPage creates an empty internal page with the given id.
func NewInternalPage(id uint32) *Page {
	return &Page{ID: id, IsLeaf: false, dirty: true}
}

// NumKeys returns the number of live keys on the page.
func (p *Page) NumKeys() int { return len(p.Keys) }

// Full reports whether the page has reached BranchingFactor keys and must
// be split before any further mutation.
func (p *Page) Full() bool { return len(p.Keys) >= BranchingFactor }

// Underflowing reports whether a non-root page has fewer than MinKeys
// live keys.
func (p *Page) Underflowing() bool { return len(p.Keys) < MinKeys }

// payloadSize returns the number of bytes the live payload occupies,
// excluding zero padding.
func (p *Page) payloadSize() int {
	n := headerSize + len(p.Keys)*keyWidth
	if p.IsLeaf {
		n += len(p.Vals) * valWidth
	} else {
		n += len(p.Children) * childWidth
	}
	return n
}

// Encode serializes the page to a zero-padded PageSize-byte buffer.
func (p *Page) Encode() ([]byte, error) {
	if p.payloadSize() > PageSize {
		return nil, common.ErrCorruptPage
	}

	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.ID)
	if p.IsLeaf {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(p.Keys)))

	off := headerSize
	for _, k := range p.Keys {
		binary.LittleEndian.PutUint16(buf[off:off+keyWidth], k)
		off += keyWidth
	}

	if p.IsLeaf {
		for _, v := range p.Vals {
			binary.LittleEndian.PutUint16(buf[off:off+valWidth], v)
			off += valWidth
		}
	} else {
		for _, c := range p.Children {
			binary.LittleEndian.PutUint32(buf[off:off+childWidth], c)
			off += childWidth
		}
	}

	return buf, nil
}

// DecodePage deserializes a page from its on-disk bytes. The page's id is
// taken from the encoded header; it is not checked against the offset the
// bytes were read from.
func DecodePage(data []byte) (*Page, error) {
	if len(data) != PageSize {
		return nil, common.ErrCorruptPage
	}

	id := binary.LittleEndian.Uint32(data[0:4])
	leafFlag := data[4]
	if leafFlag != 0 && leafFlag != 1 {
		return nil, common.ErrCorruptPage
	}
	isLeaf := leafFlag == 1
	numKeys := binary.LittleEndian.Uint16(data[5:7])

	// A well-formed page never exceeds BranchingFactor live keys; a
	// larger count can only mean a corrupt or stale buffer.
	if int(numKeys) > BranchingFactor {
		return nil, common.ErrCorruptPage
	}

	p := &Page{ID: id, IsLeaf: isLeaf}
	off := headerSize

	need := headerSize + int(numKeys)*keyWidth
	if isLeaf {
		need += int(numKeys) * valWidth
	} else {
		need += (int(numKeys) + 1) * childWidth
	}
	if need > PageSize {
		return nil, common.ErrCorruptPage
	}

	p.Keys = make([]uint16, numKeys)
	for i := range p.Keys {
		p.Keys[i] = binary.LittleEndian.Uint16(data[off : off+keyWidth])
		off += keyWidth
	}

	if isLeaf {
		p.Vals = make([]uint16, numKeys)
		for i := range p.Vals {
			p.Vals[i] = binary.LittleEndian.Uint16(data[off : off+valWidth])
			off += valWidth
		}
	} else {
		p.Children = make([]uint32, numKeys+1)
		for i := range p.Children {
			p.Children[i] = binary.LittleEndian.Uint32(data[off : off+childWidth])
			off += childWidth
		}
	}

	return p, nil
}

// Clone returns a deep copy of the page, used when a caller needs a
// mutation-safe snapshot distinct from the tier that owns the original.
func (p *Page) Clone() *Page {
	c := &Page{ID: p.ID, IsLeaf: p.IsLeaf, dirty: p.dirty}
	c.Keys = append([]uint16(nil), p.Keys...)
	if p.IsLeaf {
		c.Vals = append([]uint16(nil), p.Vals...)
	} else {
		c.Children = append([]uint32(nil), p.Children...)
	}
	return c
}
