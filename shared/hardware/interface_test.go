package hardware

import (
	"net"
	"testing"
)

func TestSelectMachineIpList(t *testing.T) {
	l, err := SelectMachineIpList(func(net.Interface) bool { return true })
	if err != nil && len(l) == 0 {
		t.Fatal("no ip address")
	}
	for _, v := range l {
		if v.IP.To4() == nil {
			t.Fatal("only IPv4 expected:", v.IP)
		}
	}
}

func TestAdvertiseBoundHost(t *testing.T) {
	addrs, err := AdvertiseAddrs(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 45207})
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0] != "127.0.0.1:45207" {
		t.Fatal("unexpected addresses:", addrs)
	}
}

func TestAdvertiseUnspecifiedHost(t *testing.T) {
	addrs, _ := AdvertiseAddrs(&net.TCPAddr{Port: 45207})
	for _, v := range addrs {
		host, port, err := net.SplitHostPort(v)
		if err != nil || port != "45207" || net.ParseIP(host).IsLoopback() {
			t.Fatal("unexpected address:", v)
		}
	}
}
