package executor

import (
	"cheapisdakv/client"
	"cheapisdakv/poller"
	"cheapisdakv/resp"
	"strings"
)

type memTask struct {
	argv [][]byte
	c    *client.Client
	fd   int
}

// Memory is the in-memory executor (component E): a FIFO task queue
// drained into a plain Go map, grounded in bitcask2/index/index.go's
// map-based keyspace and original_source/src/executor_mem_impl.cpp's
// GET/SET/DEL dispatch.
type Memory struct {
	data  map[string][]byte
	tasks []memTask
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Submit(argv [][]byte, c *client.Client, fd int) {
	owned := make([][]byte, len(argv))
	for i, a := range argv {
		owned[i] = append([]byte(nil), a...)
	}
	c.RefCount++
	m.tasks = append(m.tasks, memTask{argv: owned, c: c, fd: fd})
}

func (m *Memory) TaskCount() int {
	return len(m.tasks)
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Execute(n int, currTime int64, sink EventSink) {
	if n > len(m.tasks) {
		n = len(m.tasks)
	}
	batch := m.tasks[:n]
	m.tasks = m.tasks[n:]

	for _, t := range batch {
		t.c.RefCount--
		if t.c.Close {
			m.releaseIfIdle(t.c, t.fd, sink)
			continue
		}

		wasEmpty := len(t.c.Output) == 0
		t.c.Output = m.dispatch(t.c.Output, t.argv)
		if wasEmpty {
			_ = sink.TryWrite(t.fd, t.c)
		}
		if len(t.c.Output) > 0 {
			_ = sink.AddEvent(t.fd, poller.Writable)
		}
	}
}

func (m *Memory) releaseIfIdle(c *client.Client, fd int, sink EventSink) {
	if c.RefCount == 0 {
		_ = sink.Release(fd)
	}
}

func (m *Memory) dispatch(out []byte, argv [][]byte) []byte {
	if len(argv) == 0 {
		return resp.AppendError(out, "Unsupported Command")
	}
	switch strings.ToUpper(string(argv[0])) {
	case "GET":
		if len(argv) != 2 {
			return resp.AppendError(out, "Unsupported Command")
		}
		v, ok := m.data[string(argv[1])]
		if !ok {
			return resp.AppendNullArray(out)
		}
		return resp.AppendBulkString(out, v)
	case "SET":
		if len(argv) != 3 {
			return resp.AppendError(out, "Unsupported Command")
		}
		m.data[string(argv[1])] = append([]byte(nil), argv[2]...)
		return resp.AppendSimpleString(out, "OK")
	case "DEL":
		if len(argv) != 2 {
			return resp.AppendError(out, "Unsupported Command")
		}
		delete(m.data, string(argv[1]))
		return resp.AppendSimpleString(out, "OK")
	default:
		return resp.AppendError(out, "Unsupported Command")
	}
}
