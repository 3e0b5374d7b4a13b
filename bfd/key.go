// Package bfd holds the BFD peer sessions and profiles managed by the agent,
// along with the rules used to validate their configuration.
package bfd

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	// WildcardInterface is the configuration value meaning "no interface".
	WildcardInterface = "*"
	DefaultVRF        = "default"
)

type Family uint8

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Key identifies a session. It is comparable and used as a map key.
type Key struct {
	Peer      netip.Addr
	Local     netip.Addr // invalid when unset
	Interface string     // empty when unset
	VRF       string
	MultiHop  bool
	Family    Family
}

// BuildKey derives a session key from raw configuration values.
// An empty source leaves the local address unset, "*" or an empty
// ifname leaves the interface unset.
func BuildKey(multiHop bool, dest, source, ifname, vrf string) (Key, error) {
	peer, err := netip.ParseAddr(dest)
	if err != nil {
		return Key{}, fmt.Errorf("dest-addr: %w", err)
	}
	k := Key{
		Peer:     peer.Unmap(),
		VRF:      vrf,
		MultiHop: multiHop,
		Family:   FamilyIPv4,
	}
	if k.Peer.Is6() {
		k.Family = FamilyIPv6
	}
	if source != "" {
		local, err := netip.ParseAddr(source)
		if err != nil {
			return Key{}, fmt.Errorf("source-addr: %w", err)
		}
		k.Local = local.Unmap()
	}
	if ifname != WildcardInterface {
		k.Interface = ifname
	}
	return k, nil
}

func (k Key) String() string {
	sb := new(strings.Builder)
	if k.MultiHop {
		sb.WriteString("mhop")
	} else {
		sb.WriteString("shop")
	}
	fmt.Fprintf(sb, " peer=%s", k.Peer)
	if k.Local.IsValid() {
		fmt.Fprintf(sb, " local=%s", k.Local)
	}
	if k.Interface != "" {
		fmt.Fprintf(sb, " interface=%s", k.Interface)
	}
	fmt.Fprintf(sb, " vrf=%s", k.VRF)
	return sb.String()
}
