package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/bfd/bfdtest"
	"github.com/karimra/srl-bfd-agent/dnode"
	"github.com/karimra/srl-bfd-agent/hclconf"
	"github.com/karimra/srl-bfd-agent/nb"
)

type sessionView struct {
	Key                     string `yaml:"key"`
	Profile                 string `yaml:"profile,omitempty"`
	DetectionMultiplier     uint8  `yaml:"detection-multiplier"`
	DesiredTransmitInterval uint32 `yaml:"desired-transmission-interval"`
	RequiredReceiveInterval uint32 `yaml:"required-receive-interval"`
	DesiredEchoInterval     uint32 `yaml:"desired-echo-transmission-interval"`
	AdministrativeDown      bool   `yaml:"administrative-down"`
	PassiveMode             bool   `yaml:"passive-mode"`
	EchoMode                bool   `yaml:"echo-mode"`
	MinimumTTL              uint8  `yaml:"minimum-ttl,omitempty"`
}

type profileView struct {
	Name     string `yaml:"name"`
	Sessions int    `yaml:"sessions"`
}

type checkReport struct {
	Profiles []profileView `yaml:"profiles"`
	Sessions []sessionView `yaml:"sessions"`
}

func newCheckCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a configuration file and print the sessions it defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "yaml" {
				return fmt.Errorf("unknown output format %q", output)
			}
			report, err := check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			}
			return report.print(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format, text or yaml")
	return cmd
}

// check commits the file against an in-memory engine.
func check(ctx context.Context, file string) (*checkReport, error) {
	tree, err := hclconf.Load(file)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := nb.New(bfdtest.New(), nb.WithLogger(logger))
	if _, err := coord.Commit(ctx, dnode.NewRoot(), tree); err != nil {
		return nil, err
	}

	report := &checkReport{
		Profiles: make([]profileView, 0, coord.Profiles().Len()),
		Sessions: make([]sessionView, 0, coord.Registry().Len()),
	}
	count := make(map[string]int)
	for _, s := range coord.Registry().Sessions() {
		count[s.ProfileName()]++
		report.Sessions = append(report.Sessions, newSessionView(s))
	}
	for _, name := range coord.Profiles().Names() {
		report.Profiles = append(report.Profiles, profileView{Name: name, Sessions: count[name]})
	}
	return report, nil
}

func newSessionView(s *bfd.Session) sessionView {
	p := s.Effective()
	v := sessionView{
		Key:                     s.Key().String(),
		Profile:                 s.ProfileName(),
		DetectionMultiplier:     p.DetectMultiplier,
		DesiredTransmitInterval: p.MinTx,
		RequiredReceiveInterval: p.MinRx,
		DesiredEchoInterval:     p.EchoInterval,
		AdministrativeDown:      p.AdminDown,
		PassiveMode:             p.Passive,
		EchoMode:                p.Echo,
	}
	if s.Key().MultiHop {
		v.MinimumTTL = p.MinimumTTL
	}
	return v
}

func (r *checkReport) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPROFILE\tMULT\tTX\tRX\tADMIN")
	for _, s := range r.Sessions {
		admin := "enable"
		if s.AdministrativeDown {
			admin = "disable"
		}
		profile := s.Profile
		if profile == "" {
			profile = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", s.Key, profile,
			s.DetectionMultiplier, s.DesiredTransmitInterval, s.RequiredReceiveInterval, admin)
	}
	return tw.Flush()
}
