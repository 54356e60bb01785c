package netio

// neighborKey identifies one neighbor: the interface it is attached to and
// its IPv4 address.
type neighborKey struct {
	ifIndex int
	addr    uint32
}

// NeighborCache is a passive ARP cache: it learns (interface, IPv4) to MAC
// bindings from the link-layer source of frames the daemon receives, and
// resolves forwarding next hops from what it has seen. It never transmits
// ARP requests itself; a next hop that has not yet sent us anything simply
// fails to resolve until it does.
//
// NeighborCache is not safe for concurrent use. Like the routing table, it
// is owned by the daemon's single dispatch goroutine, which both learns
// from inbound frames and resolves during forwarding.
type NeighborCache struct {
	neighbors map[neighborKey]MAC
}

// NewNeighborCache returns an empty cache.
func NewNeighborCache() *NeighborCache {
	return &NeighborCache{neighbors: make(map[neighborKey]MAC)}
}

// Learn records that addr was seen behind mac on ifIndex, overwriting any
// previous binding so a neighbor that changes hardware re-resolves
// correctly.
func (c *NeighborCache) Learn(ifIndex int, addr uint32, mac MAC) {
	c.neighbors[neighborKey{ifIndex: ifIndex, addr: addr}] = mac
}

// ResolveMAC implements ArpResolver from the cache's learned bindings.
func (c *NeighborCache) ResolveMAC(ifIndex int, addr uint32) (MAC, bool) {
	mac, ok := c.neighbors[neighborKey{ifIndex: ifIndex, addr: addr}]
	return mac, ok
}
