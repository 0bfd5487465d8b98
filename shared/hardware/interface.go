package hardware

import (
	"errors"
	"net"
	"strconv"
)

type IpEntry struct {
	IfaceName string
	IP        net.IP
}

type MachineIpFilter func(iface net.Interface) bool

// NonLoopback keeps interfaces that are up and not loopback.
func NonLoopback(iface net.Interface) bool {
	return iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0
}

func SelectMachineIpList(filter MachineIpFilter) ([]IpEntry, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	r := make([]IpEntry, 0, 16)
	var errs []error
	for _, i := range ifaces {
		if !filter(i) {
			continue
		}
		addrs, err := i.Addrs()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			default:
				continue
			}
			if ip.To4() == nil {
				continue
			}
			r = append(r, IpEntry{IfaceName: i.Name, IP: ip})
		}
	}
	return r, errors.Join(errs...)
}

// AdvertiseAddrs returns the host:port pairs remote peers can dial to reach a
// listener bound on addr. A listener on an unspecified host is reachable on
// every non loopback IPv4 address of the machine.
func AdvertiseAddrs(addr net.Addr) ([]string, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return []string{addr.String()}, nil
	}
	if tcp.IP != nil && !tcp.IP.IsUnspecified() {
		return []string{tcp.String()}, nil
	}
	entries, err := SelectMachineIpList(NonLoopback)
	port := strconv.Itoa(tcp.Port)
	r := make([]string, 0, len(entries))
	for _, e := range entries {
		r = append(r, net.JoinHostPort(e.IP.String(), port))
	}
	return r, err
}
