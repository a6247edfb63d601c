// Package netutil provides the raw TCP socket helpers spec.md §6 lists
// as an external collaborator (TcpServer/TcpAccept/NonBlock/
// EnableTcpNoDelay/KeepAlive). Grounded in the epoll socket setup of
// other_examples/manh119-Redis__miniredis.go's EpollServer.Start, using
// golang.org/x/sys/unix instead of the bare syscall package.
package netutil

import (
	"golang.org/x/sys/unix"
)

// TCPServer binds and listens on addr:port with the given backlog and
// returns the non-blocking listening file descriptor.
func TCPServer(addr string, port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	var ip [4]byte
	if parsed := parseIPv4(addr); parsed != nil {
		ip = *parsed
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := SetNonBlock(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// TCPAccept accepts a single pending connection on listenFD, returning
// the new connection's fd and the peer's address. Returns unix.EAGAIN
// when nothing is pending (non-blocking listener).
func TCPAccept(listenFD int) (fd int, peerIP string, peerPort int, err error) {
	nfd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, "", 0, err
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		peerIP = formatIPv4(in4.Addr)
		peerPort = in4.Port
	}
	return nfd, peerIP, peerPort, nil
}

// SetNonBlock puts fd into non-blocking mode.
func SetNonBlock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// EnableTCPNoDelay disables Nagle's algorithm on fd.
func EnableTCPNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// EnableKeepAlive turns on TCP keep-alive with the given idle time in
// seconds before the first probe.
func EnableKeepAlive(fd int, idleSeconds int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, idleSeconds); err != nil {
		return err
	}
	return nil
}

func parseIPv4(addr string) *[4]byte {
	var out [4]byte
	var parts [4]int
	idx := 0
	cur := 0
	seen := false
	for i := 0; i <= len(addr); i++ {
		if i == len(addr) || addr[i] == '.' {
			if idx > 3 {
				return nil
			}
			parts[idx] = cur
			idx++
			cur = 0
			seen = true
		} else if addr[i] >= '0' && addr[i] <= '9' {
			cur = cur*10 + int(addr[i]-'0')
		} else {
			return nil
		}
	}
	if !seen || idx != 4 {
		return nil
	}
	for i, p := range parts {
		out[i] = byte(p)
	}
	return &out
}

func formatIPv4(ip [4]byte) string {
	buf := make([]byte, 0, 15)
	for i, b := range ip {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = appendUint(buf, uint(b))
	}
	return string(buf)
}

func appendUint(buf []byte, n uint) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
