package utils

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
)

type MacAddress []byte // purely for the formatting purpose

func (s MacAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}

func (s MacAddress) String() string {
	return net.HardwareAddr([]byte(s)).String()
}

type IPAddress []byte // purely for the formatting purpose

func (s IPAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}

func (s IPAddress) String() string {
	ip, ok := netip.AddrFromSlice([]byte(s))
	if !ok {
		return hex.EncodeToString(s)
	}
	return ip.String()
}

type HexBytes []byte

func (s HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}

func (s HexBytes) String() string {
	return hex.EncodeToString(s)
}
