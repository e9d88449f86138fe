// Package ioplane implements the packet I/O plane: non-blocking RX/TX
// goroutines that demultiplex inbound artifacts into destination buffers
// and notify the tracker, and that drain a lock-free hand-off queue of
// outbound artifacts produced by workers onto the wire.
package ioplane

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// Socket is the minimal non-blocking transport the RX/TX loops need.
// UDPSocket is the real kernel-bypass-flavored implementation; tests use
// LoopbackSocket.
type Socket interface {
	// RecvFrom reads one datagram into buf without blocking, returning
	// unix.EAGAIN (wrapped) if none is pending.
	RecvFrom(buf []byte) (n int, from unix.Sockaddr, err error)
	// SendTo writes buf as a single datagram to dest.
	SendTo(buf []byte, dest unix.Sockaddr) error
	Close() error
}

// UDPSocket is a non-blocking IPv4 UDP socket opened with raw syscalls,
// matching the busy-polled, kernel-bypass-flavored RX/TX loop described
// for the NIC queues: no net.Conn read deadlines, no netpoller wakeups,
// just unix.Recvfrom/Sendto with MSG_DONTWAIT.
type UDPSocket struct {
	fd int
}

// NewUDPSocket opens and binds a non-blocking UDP socket to bindAddr
// ("host:port"). When busyPoll is true it additionally requests
// SO_BUSY_POLL, the closest stock-kernel analogue to AF_XDP's low-latency
// queue polling available without loading an eBPF program.
func NewUDPSocket(bindAddr string, busyPoll bool) (*UDPSocket, error) {
	sa, err := resolveBind(bindAddr)
	if err != nil {
		return nil, fmt.Errorf("ioplane: resolving bind addr %q: %w", bindAddr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ioplane: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioplane: set nonblock: %w", err)
	}
	if busyPoll {
		// Best-effort: older kernels and non-NIC-backed sockets (e.g. in
		// CI sandboxes) reject this; it is a latency hint, not a
		// correctness requirement.
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BUSY_POLL, 50)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioplane: bind %q: %w", bindAddr, err)
	}
	return &UDPSocket{fd: fd}, nil
}

func (s *UDPSocket) RecvFrom(buf []byte) (int, unix.Sockaddr, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, unix.MSG_DONTWAIT)
	return n, from, err
}

func (s *UDPSocket) SendTo(buf []byte, dest unix.Sockaddr) error {
	return unix.Sendto(s.fd, buf, 0, dest)
}

func (s *UDPSocket) Close() error { return unix.Close(s.fd) }

// IsWouldBlock reports whether err is the non-blocking "no data yet" /
// "send buffer full" signal rather than a genuine NIC fault.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func resolveBind(hostport string) (unix.Sockaddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: port}
	if host == "" || host == "0.0.0.0" {
		return sa, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("ioplane: cannot resolve host %q", host)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("ioplane: host %q is not IPv4", host)
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// ResolveSockaddr resolves a "host:port" string to a destination
// unix.Sockaddr suitable for UDPSocket.SendTo.
func ResolveSockaddr(hostport string) (unix.Sockaddr, error) {
	return resolveBind(hostport)
}

// BuildAddrBook resolves the cluster's server address list into a
// server-id-keyed sockaddr table. addrs[i] is assumed to belong to
// server id i, the same flat indexing the per-server worker-count
// slices in internal/config use.
func BuildAddrBook(addrs []string) (map[uint16]unix.Sockaddr, error) {
	book := make(map[uint16]unix.Sockaddr, len(addrs))
	for i, a := range addrs {
		if a == "" {
			continue
		}
		sa, err := ResolveSockaddr(a)
		if err != nil {
			return nil, fmt.Errorf("ioplane: server %d: %w", i, err)
		}
		book[uint16(i)] = sa
	}
	return book, nil
}

// LoopbackSocket is an in-process fake Socket for tests: SendTo appends
// to Sent, and Inject makes a datagram available to the next RecvFrom,
// so ioplane's demux and hand-off logic can be exercised without a real
// NIC or network namespace.
type LoopbackSocket struct {
	mu    sync.Mutex
	inbox [][]byte
	Sent  []SentDatagram
}

// SentDatagram records one LoopbackSocket.SendTo call for assertions.
type SentDatagram struct {
	Bytes []byte
	Dest  unix.Sockaddr
}

func NewLoopbackSocket() *LoopbackSocket { return &LoopbackSocket{} }

// Inject makes pkt available to a subsequent RecvFrom, copying it so the
// caller may reuse its buffer.
func (s *LoopbackSocket) Inject(pkt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, append([]byte(nil), pkt...))
}

func (s *LoopbackSocket) RecvFrom(buf []byte) (int, unix.Sockaddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return 0, nil, unix.EAGAIN
	}
	pkt := s.inbox[0]
	s.inbox = s.inbox[1:]
	n := copy(buf, pkt)
	return n, nil, nil
}

func (s *LoopbackSocket) SendTo(buf []byte, dest unix.Sockaddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, SentDatagram{Bytes: append([]byte(nil), buf...), Dest: dest})
	return nil
}

func (s *LoopbackSocket) Close() error { return nil }
