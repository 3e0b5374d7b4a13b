package bfd

import (
	"errors"
	"fmt"
	"net/netip"
)

const (
	MinInterval = 10000
	MaxInterval = 60000000
)

var (
	ErrLinkLocalInterface = errors.New("when using link-local you must specify an interface")
	ErrMixedInterface     = errors.New("it is not allowed to configure the same peer with and without ifname")
)

// ValidateLinkLocal rejects IPv6 link-local peers without an interface, the
// packets could not be sent out of any specific link.
func ValidateLinkLocal(dest netip.Addr, ifname string) error {
	if dest.Is6() && dest.IsLinkLocalUnicast() && (ifname == WildcardInterface || ifname == "") {
		return ErrLinkLocalInterface
	}
	return nil
}

// ValidateInterfaceExclusive takes the interface of every definition of the
// same peer and rejects a wildcard definition coexisting with any other.
func ValidateInterfaceExclusive(ifnames []string) error {
	wildcard := false
	for _, n := range ifnames {
		if n == WildcardInterface {
			wildcard = true
			break
		}
	}
	if wildcard && len(ifnames) > 1 {
		return ErrMixedInterface
	}
	return nil
}

func ValidateInterval(v uint32) error {
	if v < MinInterval || v > MaxInterval {
		return fmt.Errorf("interval %d out of range [%d, %d]", v, MinInterval, MaxInterval)
	}
	return nil
}

func ValidateDetectMultiplier(v uint32) error {
	if v < 2 || v > 255 {
		return fmt.Errorf("detection multiplier %d out of range [2, 255]", v)
	}
	return nil
}

func ValidateMinimumTTL(v uint32) error {
	if v < 1 || v > 254 {
		return fmt.Errorf("minimum ttl %d out of range [1, 254]", v)
	}
	return nil
}

// Validator returns the bounds check of f, nil when the field has none.
func Validator(f Field) func(uint32) error {
	switch f {
	case FieldMinTx, FieldMinRx, FieldEchoInterval:
		return ValidateInterval
	case FieldDetectMultiplier:
		return ValidateDetectMultiplier
	case FieldMinimumTTL:
		return ValidateMinimumTTL
	}
	return nil
}
