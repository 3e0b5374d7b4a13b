package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const checkSample = `
profile "fast" {
  desired_transmission_interval = 20000
}

single_hop "10.0.0.1" {
  profile = "fast"
}

multi_hop "192.0.2.1" {
  source_addr = "192.0.2.254"
  minimum_ttl = 250
}
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bfd.hcl")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func runCheck(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"check"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckYAML(t *testing.T) {
	out, err := runCheck(t, writeFile(t, checkSample), "-o", "yaml")
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Profiles, 1)
	assert.Equal(t, profileView{Name: "fast", Sessions: 1}, report.Profiles[0])
	require.Len(t, report.Sessions, 2)

	byTTL := map[bool]sessionView{}
	for _, s := range report.Sessions {
		byTTL[s.MinimumTTL != 0] = s
	}
	assert.Equal(t, "fast", byTTL[false].Profile)
	assert.EqualValues(t, 20000, byTTL[false].DesiredTransmitInterval)
	assert.EqualValues(t, 250, byTTL[true].MinimumTTL)
}

func TestCheckText(t *testing.T) {
	out, err := runCheck(t, writeFile(t, checkSample))
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "peer=10.0.0.1")
	assert.Contains(t, out, "fast")
}

func TestCheckRejects(t *testing.T) {
	_, err := runCheck(t, writeFile(t, `
single_hop "fe80::1" {}
`))
	assert.Error(t, err)

	_, err = runCheck(t, writeFile(t, checkSample), "-o", "json")
	assert.Error(t, err)
}
