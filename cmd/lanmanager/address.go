// This file centralizes LAN address detection for the serve banner and QR
// output.
package main

import "net"

// GetPreferredOutboundIP returns the local address the OS would use to reach
// the wider network. No packets are sent; the UDP dial only resolves a
// route. Returns "" when the host has no usable route.
func GetPreferredOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() {
		return ""
	}
	return addr.IP.String()
}
