package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/karimra/srl-bfd-agent/bfd"
)

// Publisher pushes state documents to the system telemetry.
type Publisher interface {
	TelemetryAddOrUpdate(ctx context.Context, jsPath, jsData string) error
	TelemetryDelete(ctx context.Context, jsPath string) error
}

// Engine is the bfd.Engine of the agent. Sessions get a local
// discriminator as handle and are published as state under path, where the
// system BFD manager picks them up.
type Engine struct {
	pub    Publisher
	path   string
	logger *slog.Logger

	m    sync.Mutex
	next bfd.Handle
}

func NewEngine(pub Publisher, path string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{pub: pub, path: path, logger: logger}
}

func (e *Engine) Register(ctx context.Context, s *bfd.Session) (bfd.Handle, error) {
	e.m.Lock()
	e.next++
	h := e.next
	e.m.Unlock()
	if err := e.publish(ctx, h, s, s.Effective()); err != nil {
		return 0, err
	}
	return h, nil
}

func (e *Engine) Apply(ctx context.Context, s *bfd.Session) error {
	return e.publish(ctx, s.Handle(), s, s.Applied())
}

func (e *Engine) Release(ctx context.Context, s *bfd.Session) {
	if err := e.pub.TelemetryDelete(ctx, e.sessionPath(s.Handle())); err != nil {
		e.logger.Warn("failed to delete session state", "session", s.Key(), "error", err)
	}
}

func (e *Engine) sessionPath(h bfd.Handle) string {
	return fmt.Sprintf("%s.session{.local_discriminator==%d}", e.path, h)
}

func (e *Engine) publish(ctx context.Context, h bfd.Handle, s *bfd.Session, p bfd.Params) error {
	js, err := sessionState(h, s, p)
	if err != nil {
		return err
	}
	return e.pub.TelemetryAddOrUpdate(ctx, e.sessionPath(h), js)
}

func sessionState(h bfd.Handle, s *bfd.Session, p bfd.Params) (string, error) {
	k := s.Key()
	fields := []struct {
		path  string
		value any
	}{
		{"local_discriminator", uint32(h)},
		{"peer", k.Peer.String()},
		{"vrf", k.VRF},
		{"multi_hop", k.MultiHop},
		{"family", k.Family.String()},
		{"detection_multiplier", p.DetectMultiplier},
		{"desired_transmission_interval", p.MinTx},
		{"required_receive_interval", p.MinRx},
		{"desired_echo_transmission_interval", p.EchoInterval},
		{"admin_state", adminState(p.AdminDown)},
		{"passive_mode", p.Passive},
		{"echo_mode", p.Echo},
	}
	js := "{}"
	var err error
	for _, f := range fields {
		if js, err = sjson.Set(js, f.path, f.value); err != nil {
			return "", err
		}
	}
	optional := map[string]string{
		"local":     addrString(k),
		"interface": k.Interface,
		"profile":   s.ProfileName(),
	}
	for path, v := range optional {
		if v == "" {
			continue
		}
		if js, err = sjson.Set(js, path, v); err != nil {
			return "", err
		}
	}
	if k.MultiHop {
		if js, err = sjson.Set(js, "minimum_ttl", p.MinimumTTL); err != nil {
			return "", err
		}
	}
	return js, nil
}

func addrString(k bfd.Key) string {
	if !k.Local.IsValid() {
		return ""
	}
	return k.Local.String()
}

func adminState(down bool) string {
	if down {
		return "disable"
	}
	return "enable"
}
