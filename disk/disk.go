// Package disk is the disk-resident executor (component I): it wires
// seglog (the append-only value store), pagefile (the page
// allocator) and index (the signature tree) together into an
// executor.Executor, replaying the same Submit/Execute/TaskCount
// contract the in-memory executor satisfies. Grounded throughout in
// original_source/src/disk/executor_disk_impl.cpp's ExecutorDiskImpl:
// PackKVLength/UnpackLength/PackIDLengthAndOffset/UnpackKVRep, the
// Submit-time PrefetchKey/PrefetchKeyValue calls, and the
// batch-write-then-index-update ordering in Execute.
package disk

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"cheapisdakv/client"
	"cheapisdakv/disk/index"
	"cheapisdakv/disk/pagefile"
	"cheapisdakv/disk/seglog"
	"cheapisdakv/errs"
	"cheapisdakv/executor"
	"cheapisdakv/poller"
	"cheapisdakv/resp"
	"cheapisdakv/util/file"
	"cheapisdakv/util/log"

	"github.com/gofrs/flock"
)

const (
	uint5Max  = (1 << 5) - 1
	uint11Max = (1 << 11) - 1
)

// packKVLength saturates key/value lengths into a 16-bit hint: 5 bits
// for the key length (keys longer than 31 bytes are just marked
// "long"), 11 for the value length, so a Submit-time prefetch can
// size its read without first doing a synchronous header read.
func packKVLength(kLen, vLen int) uint16 {
	k := kLen
	if k > uint5Max {
		k = uint5Max
	}
	v := vLen
	if v > uint11Max {
		v = uint11Max
	}
	return uint16(k<<11) | uint16(v)
}

func unpackLength(length uint16) (kLen, vLen uint16) {
	return length >> 11, length & uint11Max
}

// packRep folds a segment id, saturated k/v length hint and file
// offset into the 64-bit value the index stores as a leaf.
func packRep(id uint16, length uint16, offset uint32) uint64 {
	return (uint64(id) << 48) | (uint64(length) << 32) | uint64(offset)
}

func unpackRep(rep uint64) (id uint16, length uint16, offset uint32) {
	return uint16(rep >> 48), uint16(rep >> 32), uint32(rep)
}

type command int

const (
	cmdGet command = iota
	cmdSet
	cmdDel
	cmdUnsupported
)

type task struct {
	cmd command
	key []byte
	val []byte
	c   *client.Client
	fd  int
}

// Executor is the disk-resident backend.
type Executor struct {
	dir   string
	flock *flock.Flock
	log   *seglog.Log
	pages *pagefile.Allocator
	tree  *index.Tree
	tasks []task
}

// Open opens (or creates) a disk-resident store rooted at dir: a
// cheapis-dakv.index page file for the signature tree and one or more
// cheapis-dakv-<id>.data segment files for record bodies. Only one
// process may hold a given dir open at a time, enforced with the same
// gofrs/flock directory lock bitcask2.Open uses.
func Open(dir string) (*Executor, error) {
	fl := flock.New(filepath.Join(dir, ".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.LockHeldErr
	}

	indexPath := filepath.Join(dir, "cheapis-dakv.index")
	if file.IsFileExist(indexPath) {
		log.FnLog("reopening existing store at %s; on-disk state is not recovered across restarts", dir)
	}

	pages, err := pagefile.Open(indexPath)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	tree, err := index.Open(pages)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	return &Executor{
		dir:   dir,
		flock: fl,
		log:   seglog.Open(dir),
		pages: pages,
		tree:  tree,
	}, nil
}

func (e *Executor) Close() error {
	if err := e.log.Close(); err != nil {
		return err
	}
	if err := e.pages.Close(); err != nil {
		return err
	}
	return e.flock.Unlock()
}

func (e *Executor) TaskCount() int {
	return len(e.tasks)
}

func (e *Executor) Submit(argv [][]byte, c *client.Client, fd int) {
	t := task{c: c, fd: fd}
	c.RefCount++

	switch {
	case len(argv) == 2 && strings.EqualFold(string(argv[0]), "GET"):
		t.cmd = cmdGet
		t.key = append([]byte(nil), argv[1]...)
		e.prefetch(t.key, true)
	case len(argv) == 3 && strings.EqualFold(string(argv[0]), "SET"):
		t.cmd = cmdSet
		t.key = append([]byte(nil), argv[1]...)
		t.val = append([]byte(nil), argv[2]...)
		e.prefetch(t.key, false)
	case len(argv) == 2 && strings.EqualFold(string(argv[0]), "DEL"):
		t.cmd = cmdDel
		t.key = append([]byte(nil), argv[1]...)
		e.prefetch(t.key, false)
	default:
		t.cmd = cmdUnsupported
	}

	e.tasks = append(e.tasks, t)
}

func (e *Executor) prefetch(key []byte, withValue bool) {
	rep, ok := e.tree.GetRep(key)
	if !ok {
		return
	}
	id, length, offset := unpackRep(rep)
	kLen, vLen := unpackLength(length)
	n := headerAndKeyLen(kLen)
	if withValue {
		n += int(vLen)
	}
	e.log.Prefetch(id, offset, n)
}

func headerAndKeyLen(kLen uint16) int {
	return seglog.HeaderSize + int(kLen)
}

func (e *Executor) Execute(n int, currTime int64, sink executor.EventSink) {
	if n == 0 {
		return
	}
	if n > len(e.tasks) {
		n = len(e.tasks)
	}
	if err := e.log.CreateIfNeeded(); err != nil {
		log.Fatalf("failed creating data segment: %v", err)
	}

	batch := e.tasks[:n]
	e.tasks = e.tasks[n:]

	var keys, vals [][]byte
	setIdx := make([]int, 0, n)
	for i, t := range batch {
		if t.cmd == cmdSet && !t.c.Close {
			keys = append(keys, t.key)
			vals = append(vals, t.val)
			setIdx = append(setIdx, i)
		}
	}

	var offsets []uint32
	if len(keys) > 0 {
		var err error
		offsets, err = e.log.Append(keys, vals)
		if err != nil {
			log.Fatalf("failed appending to data segment: %v", err)
		}
	}

	segID := e.log.CurrentID()
	offsetByTask := make(map[int]uint32, len(setIdx))
	for j, i := range setIdx {
		offsetByTask[i] = offsets[j]
	}

	for i, t := range batch {
		t.c.RefCount--
		if t.c.Close {
			if t.c.RefCount == 0 {
				_ = sink.Release(t.fd)
			}
			continue
		}

		wasEmpty := len(t.c.Output) == 0
		switch t.cmd {
		case cmdGet:
			t.c.Output = e.appendGet(t.c.Output, t.key)
		case cmdSet:
			rep := packRep(segID, packKVLength(len(t.key), len(t.val)), offsetByTask[i])
			if err := e.tree.Add(t.key, rep, func(_, proposed uint64) uint64 { return proposed }); err != nil {
				log.Fatalf("failed indexing key: %v", err)
			}
			t.c.Output = resp.AppendSimpleString(t.c.Output, "OK")
		case cmdDel:
			e.tree.Del(t.key)
			t.c.Output = resp.AppendSimpleString(t.c.Output, "OK")
		default:
			t.c.Output = resp.AppendError(t.c.Output, "Unsupported Command")
		}

		if wasEmpty {
			_ = sink.TryWrite(t.fd, t.c)
		}
		if len(t.c.Output) > 0 {
			_ = sink.AddEvent(t.fd, poller.Writable)
		}
	}
}

// appendGet reads a record by its saturated index hint, then checks
// the record's own header against that hint: a key at or past 31
// bytes or a value at or past 2047 bytes saturates the packed length
// hint, so the hint alone can undercount how much of the record the
// first read actually needs to cover. Mirrors KVTrans::Get's two-pread
// shape in original_source/src/disk/executor_disk_impl.cpp: read the
// hinted span first, decode the true header out of it, and only issue
// a second pread for whatever the hint left short.
func (e *Executor) appendGet(out []byte, key []byte) []byte {
	rep, ok := e.tree.GetRep(key)
	if !ok {
		return resp.AppendNullArray(out)
	}
	id, length, offset := unpackRep(rep)
	kLen, vLen := unpackLength(length)

	record, err := e.log.ReadAt(id, offset, headerAndKeyLen(kLen)+int(vLen))
	if err != nil {
		log.Fatalf("failed reading record at segment %d offset %d: %v", id, offset, err)
	}

	trueKeyLen := binary.LittleEndian.Uint16(record[0:2])
	trueValLen := binary.LittleEndian.Uint16(record[2:4])
	need := seglog.HeaderSize + int(trueKeyLen) + int(trueValLen)
	if need > len(record) {
		rest, err := e.log.ReadAt(id, offset+uint32(len(record)), need-len(record))
		if err != nil {
			log.Fatalf("failed reading record remainder at segment %d offset %d: %v", id, offset, err)
		}
		record = append(record, rest...)
	}

	value := record[seglog.HeaderSize+int(trueKeyLen) : need]
	return resp.AppendBulkString(out, value)
}
