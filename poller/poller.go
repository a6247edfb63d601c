// Package poller is the readiness-notification collaborator spec.md §6
// describes as external to the core ("the readiness notification
// primitive (epoll/kqueue wrapper)"). It is grounded in
// other_examples/manh119-Redis__miniredis.go's EpollServer, which wraps
// the same four syscalls (epoll_create1, epoll_ctl, epoll_wait, plus
// non-blocking accept/read/write) this module needs, using the
// modern golang.org/x/sys/unix bindings instead of the bare syscall
// package that example reaches for.
package poller

import (
	"golang.org/x/sys/unix"
)

// Mask is a readiness subscription: Readable, Writable, or both ORed
// together.
type Mask uint32

const (
	Readable Mask = unix.EPOLLIN
	Writable Mask = unix.EPOLLOUT
)

const maxEvents = 1024

// Open creates a new epoll instance and returns its file descriptor,
// matching EventLoop<Client>::Open() in the spec's external interface.
func Open() (int, error) {
	return unix.EpollCreate1(0)
}

// Loop is a readiness loop over resources of type T, one per file
// descriptor. Resources are stored in a dense slice indexed by fd
// ("resource storage is indexed by fd (dense array)", spec.md §6); T
// should be a pointer type so the zero value unambiguously means "no
// resource acquired for this fd".
type Loop[T any] struct {
	epfd      int
	resources []T
	masks     []Mask
	maxFD     int
	events    []unix.EpollEvent
}

// New wraps an already-open epoll fd (typically from Open()).
func New[T any](epfd int) *Loop[T] {
	return &Loop[T]{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
		maxFD:  -1,
	}
}

func (l *Loop[T]) grow(fd int) {
	if fd < len(l.resources) {
		return
	}
	n := fd + 1
	resources := make([]T, n)
	copy(resources, l.resources)
	l.resources = resources

	masks := make([]Mask, n)
	copy(masks, l.masks)
	l.masks = masks
}

// Acquire associates an owned resource with fd. Fails if fd is
// negative; the resource table grows to fit any non-negative fd,
// mirroring the spec's "Acquire fails if the fd is out of range" only
// in the degenerate negative-fd case, since Go slices can grow instead
// of using the fixed-capacity dense array the original reference used.
func (l *Loop[T]) Acquire(fd int, resource T) error {
	if fd < 0 {
		return unix.EBADF
	}
	l.grow(fd)
	l.resources[fd] = resource
	if fd > l.maxFD {
		l.maxFD = fd
	}
	return nil
}

// Release disassociates fd's resource, removes any readiness
// subscriptions, and closes the fd.
func (l *Loop[T]) Release(fd int) error {
	if fd < 0 || fd >= len(l.resources) {
		return nil
	}
	if l.masks[fd] != 0 {
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		l.masks[fd] = 0
	}
	var zero T
	l.resources[fd] = zero
	return unix.Close(fd)
}

// AddEvent subscribes fd to additional readiness events.
func (l *Loop[T]) AddEvent(fd int, mask Mask) error {
	l.grow(fd)
	newMask := l.masks[fd] | mask
	op := unix.EPOLL_CTL_MOD
	if l.masks[fd] == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	ev := unix.EpollEvent{Events: uint32(newMask), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, op, fd, &ev); err != nil {
		return err
	}
	l.masks[fd] = newMask
	return nil
}

// DelEvent unsubscribes fd from the given readiness events.
func (l *Loop[T]) DelEvent(fd int, mask Mask) error {
	if fd < 0 || fd >= len(l.masks) {
		return nil
	}
	newMask := l.masks[fd] &^ mask
	if newMask == l.masks[fd] {
		return nil
	}
	var err error
	if newMask == 0 {
		err = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	} else {
		ev := unix.EpollEvent{Events: uint32(newMask), Fd: int32(fd)}
		err = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return err
	}
	l.masks[fd] = newMask
	return nil
}

// Poll blocks for up to timeoutMS milliseconds (-1 blocks forever, 0
// returns immediately) and returns the number of ready events.
func (l *Loop[T]) Poll(timeoutMS int) (int, error) {
	n, err := unix.EpollWait(l.epfd, l.events, timeoutMS)
	if err == unix.EINTR {
		return 0, nil
	}
	return n, err
}

// GetEvents returns the event buffer the most recent Poll filled. The
// slice is not trimmed: only its first n entries, n as returned by
// Poll, are valid.
func (l *Loop[T]) GetEvents() []unix.EpollEvent {
	return l.events
}

func GetEventFD(ev unix.EpollEvent) int {
	return int(ev.Fd)
}

func IsEventReadable(ev unix.EpollEvent) bool {
	return ev.Events&uint32(Readable) != 0
}

func IsEventWritable(ev unix.EpollEvent) bool {
	return ev.Events&uint32(Writable) != 0
}

func (l *Loop[T]) GetResources() []T {
	return l.resources
}

func (l *Loop[T]) GetResource(fd int) T {
	return l.resources[fd]
}

func (l *Loop[T]) GetMaxFD() int {
	return l.maxFD
}
