//go:build linux

package ingress

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

type linuxRawSocket struct {
	fd int
}

func openRawSocket(iface string, filters []Filter, readTimeout time.Duration) (rawSocket, error) {
	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %s: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to open can socket: %w", err)
	}

	if len(filters) > 0 {
		canFilters := make([]unix.CanFilter, 0, len(filters))
		for _, f := range filters {
			id, mask := f.idMask()
			canFilters = append(canFilters, unix.CanFilter{Id: id, Mask: mask})
		}

		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, canFilters); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set can filters: %w", err)
		}
	}

	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIface.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind can socket to %s: %w", iface, err)
	}

	return &linuxRawSocket{fd: fd}, nil
}

func (s *linuxRawSocket) read(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, errReadTimeout
		}
		return 0, err
	}
	return n, nil
}

func (s *linuxRawSocket) close() error {
	return unix.Close(s.fd)
}
