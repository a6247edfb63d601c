// Package index is the signature tree container (component H):
// spec.md leaves its internal structure opaque, specifying only the
// external contract (GetRep, Get, Add with a conflict resolver, Del)
// plus a Helper/Translator collaborator that knows how to compare a
// packed rep against a candidate key and fetch its value. This is a
// from-scratch design substituting for sig_tree (not present in the
// retrieved sources): a page-resident byte trie over the raw key
// bytes, so two distinct keys can never collide by construction,
// grounded in the allocator's page/offset vocabulary from
// original_source/src/disk/executor_disk_impl.cpp's AllocatorImpl and
// the packed-rep tagging idea from its Helper.Pack/Unpack/IsPacked.
package index

import (
	"encoding/binary"
	"errors"

	"cheapisdakv/disk/pagefile"
)

var errRootNotAtZero = errors.New("index: pages allocator did not hand out offset 0 for the root")

const (
	slotSize    = 9 // 1 kind byte + 8 value bytes
	numChildren = 256
	terminalOff = numChildren * slotSize
)

type slotKind byte

const (
	kindEmpty slotKind = 0
	kindChild slotKind = 1
	kindLeaf  slotKind = 2
)

// Resolver decides what to store when Add finds a rep already present
// at the target key: it receives the existing rep and the proposed
// rep and returns the rep to store. Mirrors the conflict-resolver
// callback the original SignatureTreeTpl::Add takes; here there is
// never a hash collision to resolve (the path through the trie IS the
// key), so this only ever fires on a genuine overwrite of the same
// key, but the hook stays so a caller could layer merge-on-write
// semantics in without touching the tree.
type Resolver func(existing uint64, proposed uint64) uint64

// Tree is a page-resident trie: each node is one allocator page with
// 256 child slots (one per possible next key byte) plus one terminal
// slot for a key that ends exactly at that node. The root always
// lives at page offset 0.
type Tree struct {
	pages *pagefile.Allocator
}

// Open reserves page offset 0 for the trie's root and returns a Tree
// over pages. pages must be freshly opened with nothing else yet
// allocated from it, since Open unconditionally claims the first
// page: the allocator has no on-disk record of "root already
// reserved" across process restarts, only the in-run bump pointer
// (see DESIGN.md's note on the disk backend not yet supporting
// crash recovery).
func Open(pages *pagefile.Allocator) (*Tree, error) {
	root, err := pages.AllocatePage()
	if err != nil {
		return nil, err
	}
	if root != 0 {
		return nil, errRootNotAtZero
	}
	return &Tree{pages: pages}, nil
}

func (t *Tree) node(offset int64) []byte {
	return t.pages.Base()[offset : offset+pagefile.PageSize]
}

func readSlot(node []byte, slotOffset int) (slotKind, uint64) {
	kind := slotKind(node[slotOffset])
	value := binary.LittleEndian.Uint64(node[slotOffset+1 : slotOffset+9])
	return kind, value
}

func writeSlot(node []byte, slotOffset int, kind slotKind, value uint64) {
	node[slotOffset] = byte(kind)
	binary.LittleEndian.PutUint64(node[slotOffset+1:slotOffset+9], value)
}

func childSlot(node []byte, b byte) (slotKind, uint64) {
	return readSlot(node, int(b)*slotSize)
}

func setChildSlot(node []byte, b byte, kind slotKind, value uint64) {
	writeSlot(node, int(b)*slotSize, kind, value)
}

func terminalSlot(node []byte) (slotKind, uint64) {
	return readSlot(node, terminalOff)
}

func setTerminalSlot(node []byte, kind slotKind, value uint64) {
	writeSlot(node, terminalOff, kind, value)
}

// walk descends one node per key byte, allocating child pages as
// needed when grow is true; it returns the offset of the node
// reached after consuming every byte of key, where that key's own
// terminal slot lives.
func (t *Tree) walk(key []byte, grow bool) (offset int64, ok bool, err error) {
	offset = 0
	for _, b := range key {
		node := t.node(offset)
		kind, value := childSlot(node, b)
		switch kind {
		case kindChild:
			offset = int64(value)
		case kindEmpty:
			if !grow {
				return 0, false, nil
			}
			childOffset, aerr := t.pages.AllocatePage()
			if aerr != nil {
				return 0, false, aerr
			}
			// AllocatePage can grow and move the mapping; re-derive
			// node from the current base before writing into it.
			setChildSlot(t.node(offset), b, kindChild, uint64(childOffset))
			offset = childOffset
		}
	}
	return offset, true, nil
}

// GetRep returns the rep stored under key, and ok=false if absent.
func (t *Tree) GetRep(key []byte) (uint64, bool) {
	offset, found, _ := t.walk(key, false)
	if !found {
		return 0, false
	}
	kind, value := terminalSlot(t.node(offset))
	if kind != kindLeaf {
		return 0, false
	}
	return value, true
}

// Add stores rep under key, allocating trie nodes as needed.
func (t *Tree) Add(key []byte, rep uint64, resolve Resolver) error {
	offset, _, err := t.walk(key, true)
	if err != nil {
		return err
	}
	node := t.node(offset)
	kind, existing := terminalSlot(node)
	if kind == kindLeaf {
		setTerminalSlot(node, kindLeaf, resolve(existing, rep))
	} else {
		setTerminalSlot(node, kindLeaf, rep)
	}
	return nil
}

// Del removes any rep stored under key. Interior pages are left in
// place (a from-scratch design choice: reclaiming emptied interior
// pages would need per-node child-count bookkeeping the original
// contract doesn't ask for, and pages are cheap relative to the data
// log they index).
func (t *Tree) Del(key []byte) {
	offset, found, _ := t.walk(key, false)
	if !found {
		return
	}
	setTerminalSlot(t.node(offset), kindEmpty, 0)
}
