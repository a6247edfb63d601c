// Package server is the event loop driver (component D): a single
// goroutine, no locks, cooperative scheduling over one poller.Loop.
// Grounded in original_source/src/cheapis.cpp's Run() (the
// read_query_from_client / write_out_buf / server_cron lambdas) and
// other_examples/manh119-Redis__miniredis.go's EpollServer.Start loop,
// restructured around an Executor so the same driver runs both the
// in-memory and disk backends.
package server

import (
	"time"

	"cheapisdakv/client"
	"cheapisdakv/executor"
	"cheapisdakv/netutil"
	"cheapisdakv/poller"
	"cheapisdakv/resp"
	"cheapisdakv/util/log"

	"golang.org/x/sys/unix"
)

const (
	maxAcceptsPerCall = 1000
	readBlockSize     = 4096
	idleTimeout       = 360
	cronInterval      = 1
	tcpKeepAliveSecs  = 300

	// maxInputBuffer bounds how much unparsed input a connection may
	// accumulate before it is treated as fatal to the connection.
	maxInputBuffer = 10485760
)

// Config holds the bind address, port and listen backlog; see
// cmd/cheapisdakv for how these are sourced from flags.
type Config struct {
	Addr    string
	Port    int
	Backlog int
}

// Server owns the poller.Loop, the acceptor fd and the executor it
// drives.
type Server struct {
	cfg        Config
	loop       *poller.Loop[*client.Client]
	exec       executor.Executor
	acceptorFD int

	// lastCronTime is its own field rather than reusing the acceptor
	// client's LastModTime as a clock: the acceptor's Client record is
	// exempt from the idle timeout sweep precisely so it never needs a
	// meaningful LastModTime, so cron scheduling gets its own field.
	lastCronTime int64
}

func New(cfg Config, exec executor.Executor) (*Server, error) {
	epfd, err := poller.Open()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:          cfg,
		loop:         poller.New[*client.Client](epfd),
		exec:         exec,
		lastCronTime: currentTime(),
	}

	fd, err := netutil.TCPServer(cfg.Addr, cfg.Port, cfg.Backlog)
	if err != nil {
		return nil, err
	}
	s.acceptorFD = fd

	acceptor := client.New(-1)
	if err := s.loop.Acquire(fd, acceptor); err != nil {
		return nil, err
	}
	if err := s.loop.AddEvent(fd, poller.Readable); err != nil {
		return nil, err
	}

	return s, nil
}

func currentTime() int64 {
	return time.Now().Unix()
}

// Run blocks, servicing connections until Poll returns an error.
func (s *Server) Run() error {
	for {
		// An idle event loop still wants to run server cron on
		// schedule; a backlog of queued tasks means the loop should
		// not block on I/O readiness at all, since there's CPU work
		// waiting regardless of new events.
		timeout := cronInterval * 1000
		if s.exec.TaskCount() > 0 {
			timeout = 0
		}

		n, err := s.loop.Poll(timeout)
		if err != nil {
			return err
		}

		events := s.loop.GetEvents()
		for i := 0; i < n; i++ {
			fd := poller.GetEventFD(events[i])

			if fd == s.acceptorFD {
				s.acceptConnections()
				continue
			}

			c := s.loop.GetResource(fd)
			if c == nil {
				continue
			}

			if poller.IsEventReadable(events[i]) {
				s.readFromClient(c, fd)
				c = s.loop.GetResource(fd)
			}
			if c != nil && !c.Close && poller.IsEventWritable(events[i]) {
				s.writeToClient(c, fd)
			}
		}

		if pending := s.exec.TaskCount(); pending > 0 {
			plan := (pending + 1) / 2
			s.exec.Execute(plan, currentTime(), s)
		}

		s.cron()
	}
}

func (s *Server) acceptConnections() {
	max := maxAcceptsPerCall
	for max > 0 {
		max--
		fd, _, _, err := netutil.TCPAccept(s.acceptorFD)
		if err != nil {
			if err != unix.EAGAIN {
				log.FnErrLog("accept failed: %v", err)
			}
			return
		}

		if err := netutil.SetNonBlock(fd); err != nil {
			unix.Close(fd)
			continue
		}
		_ = netutil.EnableTCPNoDelay(fd)
		_ = netutil.EnableKeepAlive(fd, tcpKeepAliveSecs)

		c := client.New(currentTime())
		if err := s.loop.Acquire(fd, c); err != nil {
			unix.Close(fd)
			continue
		}
		if err := s.loop.AddEvent(fd, poller.Readable); err != nil {
			_ = s.loop.Release(fd)
		}
	}
}

func (s *Server) readFromClient(c *client.Client, fd int) {
	buf := make([]byte, readBlockSize)
	nread, err := unix.Read(fd, buf)
	if nread <= 0 {
		if err == unix.EAGAIN {
			return
		}
		s.closeOrMark(c, fd)
		return
	}

	c.Input = append(c.Input, buf[:nread]...)
	c.LastModTime = currentTime()

	if len(c.Input) > maxInputBuffer {
		log.FnErrLog("input buffer exceeded %d bytes on fd %d", maxInputBuffer, fd)
		s.closeOrMark(c, fd)
		return
	}

	for c.ConsumeLen < len(c.Input) {
		consumed := c.Resp.Input(c.Input[c.ConsumeLen:])
		c.ConsumeLen += consumed

		switch c.Resp.State() {
		case resp.Success:
			argv := c.Resp.Argv
			s.exec.Submit(argv, c, fd)
			c.Resp.Reset()
			c.CompactInput(c.ConsumeLen)

		case resp.Process:
			return

		default:
			log.FnErrLog("parse error from fd %d: state %v", fd, c.Resp.State())
			s.closeOrMark(c, fd)
			return
		}
	}
}

func (s *Server) writeToClient(c *client.Client, fd int) {
	if len(c.Output) == 0 {
		_ = s.loop.DelEvent(fd, poller.Writable)
		return
	}

	nwritten, err := unix.Write(fd, c.Output)
	if nwritten <= 0 {
		if err != unix.EAGAIN {
			s.closeOrMark(c, fd)
		}
		return
	}

	c.LastModTime = currentTime()
	c.CompactOutput(nwritten)

	if len(c.Output) == 0 {
		_ = s.loop.DelEvent(fd, poller.Writable)
	}
}

// closeOrMark is the release-or-mark decision: a client with no
// in-flight tasks is destroyed immediately, one with in-flight tasks
// is marked for deferred close and unsubscribed so Submit never sees
// it again, and the last completing task releases it.
func (s *Server) closeOrMark(c *client.Client, fd int) {
	if c.RefCount == 0 {
		_ = s.loop.Release(fd)
		return
	}
	c.Close = true
	_ = s.loop.DelEvent(fd, poller.Readable|poller.Writable)
}

func (s *Server) cron() {
	currTime := currentTime()
	if currTime-s.lastCronTime < cronInterval {
		return
	}

	resources := s.loop.GetResources()
	for fd := 0; fd <= s.loop.GetMaxFD(); fd++ {
		c := resources[fd]
		if c == nil || fd == s.acceptorFD {
			continue
		}
		if currTime-c.LastModTime > idleTimeout {
			s.closeOrMark(c, fd)
		}
	}
	s.lastCronTime = currTime
}

// TryWrite, AddEvent and Release let the executor reach back into the
// loop; Server satisfies executor.EventSink.
func (s *Server) TryWrite(fd int, c *client.Client) error {
	if len(c.Output) == 0 {
		return nil
	}
	nwritten, err := unix.Write(fd, c.Output)
	if nwritten > 0 {
		c.LastModTime = currentTime()
		c.CompactOutput(nwritten)
	}
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (s *Server) AddEvent(fd int, mask poller.Mask) error {
	return s.loop.AddEvent(fd, mask)
}

func (s *Server) Release(fd int) error {
	return s.loop.Release(fd)
}
