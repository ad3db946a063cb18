//go:build linux

package sockid

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"
)

// soCookie is SO_COOKIE, defined in socket.h in the linux kernel. It is not
// exported by the syscall package.
const soCookie = 57

// socketCookie reads the kernel-assigned cookie for conn's underlying file
// descriptor.
func socketCookie(conn *net.TCPConn) (uint64, error) {
	var cookie uint64
	cookieLen := uint32(unsafe.Sizeof(cookie))
	file, err := conn.File()
	if err != nil {
		return 0, err
	}
	defer file.Close()
	// GetsockoptInt cannot return a 64-bit value, so the syscall is made
	// directly instead.
	_, _, errno := syscall.Syscall6(
		uintptr(syscall.SYS_GETSOCKOPT),
		uintptr(int(file.Fd())),
		uintptr(syscall.SOL_SOCKET),
		uintptr(soCookie),
		uintptr(unsafe.Pointer(&cookie)),
		uintptr(unsafe.Pointer(&cookieLen)),
		uintptr(0))
	if errno != 0 {
		return 0, fmt.Errorf("sockid: getsockopt(SO_COOKIE) failed: errno=%d", errno)
	}
	return cookie, nil
}

// New returns a session identifier for conn, derived from its kernel socket
// cookie.
func New(conn *net.TCPConn) (string, error) {
	cookie, err := socketCookie(conn)
	if err != nil {
		return "", err
	}
	return FromCookie(cookie)
}
