package udpx

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/cyphal-go/uavnode/node"
)

// InterfaceSubnet resolves ifaceName's first IPv4 address and its network,
// binding the node's identity to a physical link.
func InterfaceSubnet(ifaceName string) (*net.IPNet, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("udpx: link %q: %w", ifaceName, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("udpx: addresses on %q: %w", ifaceName, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil && a.IPNet.IP.To4() != nil {
			return a.IPNet, nil
		}
	}
	return nil, fmt.Errorf("udpx: no IPv4 address on %q", ifaceName)
}

// nodeIDFromIP recovers the node id carried in the low 16 bits of ip's host
// part: the last two octets, network byte order.
func nodeIDFromIP(ip net.IP) node.NodeID {
	v4 := ip.To4()
	return node.NodeID(uint16(v4[2])<<8 | uint16(v4[3]))
}

// ipForNode builds the IPv4 address of id within subnet by overwriting the
// low 16 bits of subnet's network address. AnonymousNodeID (0xFFFF) yields
// the all-ones address within those same two octets, used as the subject
// broadcast destination.
func ipForNode(subnet *net.IPNet, id node.NodeID) net.IP {
	base := subnet.IP.To4()
	out := make(net.IP, 4)
	copy(out, base)
	out[2] = byte(id >> 8)
	out[3] = byte(id)
	return out
}
