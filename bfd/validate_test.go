package bfd_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karimra/srl-bfd-agent/bfd"
)

func TestValidateLinkLocal(t *testing.T) {
	ll := netip.MustParseAddr("fe80::1")
	assert.ErrorIs(t, bfd.ValidateLinkLocal(ll, "*"), bfd.ErrLinkLocalInterface)
	assert.NoError(t, bfd.ValidateLinkLocal(ll, "ethernet-1/1.0"))
	assert.NoError(t, bfd.ValidateLinkLocal(netip.MustParseAddr("2001:db8::1"), "*"))
	assert.NoError(t, bfd.ValidateLinkLocal(netip.MustParseAddr("169.254.0.1"), "*"))
}

func TestValidateInterfaceExclusive(t *testing.T) {
	tests := []struct {
		name    string
		ifnames []string
		wantErr bool
	}{
		{"single wildcard", []string{"*"}, false},
		{"single concrete", []string{"eth0"}, false},
		{"two concrete", []string{"eth0", "eth1"}, false},
		{"wildcard and concrete", []string{"*", "eth0"}, true},
		{"concrete and wildcard", []string{"eth0", "eth1", "*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bfd.ValidateInterfaceExclusive(tt.ifnames)
			if tt.wantErr {
				assert.ErrorIs(t, err, bfd.ErrMixedInterface)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateInterval(t *testing.T) {
	assert.Error(t, bfd.ValidateInterval(9999))
	assert.NoError(t, bfd.ValidateInterval(10000))
	assert.NoError(t, bfd.ValidateInterval(60000000))
	assert.Error(t, bfd.ValidateInterval(60000001))
}

func TestValidatorPerField(t *testing.T) {
	assert.Nil(t, bfd.Validator(bfd.FieldEcho))
	assert.Error(t, bfd.Validator(bfd.FieldDetectMultiplier)(1))
	assert.NoError(t, bfd.Validator(bfd.FieldDetectMultiplier)(3))
	assert.Error(t, bfd.Validator(bfd.FieldMinimumTTL)(255))
	assert.Error(t, bfd.Validator(bfd.FieldEchoInterval)(9999))
}
