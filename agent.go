// Package agent is the SR Linux NDK side of the BFD agent: it registers with
// the NDK manager, turns configuration notifications into transactions for
// the nb coordinator and publishes session state as telemetry.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nokia/srlinux-ndk-go/ndk"
	"github.com/openconfig/gnmic/pkg/target"
	"github.com/openconfig/gnmic/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/karimra/srl-bfd-agent/dnode"
	"github.com/karimra/srl-bfd-agent/nb"
)

const (
	defaultGRPCAddress   = "localhost:50053"
	defaultRetryTimeout  = 5 * time.Second
	defaultTelemetryPath = ".bfd_agent"
	defaultGNMIAddress   = "unix:///opt/srlinux/var/run/sr_gnmi_server"
)

type Agent struct {
	Name  string
	AppID uint32

	grpcAddress   string
	retryTimeout  time.Duration
	telemetryPath string
	logger        *slog.Logger
	coordOpts     []nb.Option

	// gRPC connection used to connect to the NDK server
	GRPCConn *grpc.ClientConn
	// unix socket gnmi client
	Target *target.Target
	// SDK Manager Client
	SdkMgrServiceClient       ndk.SdkMgrServiceClient
	NotificationServiceClient ndk.SdkNotificationServiceClient
	TelemetryServiceClient    ndk.SdkMgrTelemetryServiceClient

	telemetry Publisher
	coord     *nb.Coordinator

	// m serializes notification handling
	m       sync.Mutex
	running *dnode.Node
	// config transactions cache
	configTrx []*ndk.ConfigNotification

	ifm    sync.RWMutex
	ifaces map[string]struct{}
}

type Option func(*Agent)

func WithGRPCAddress(addr string) Option {
	return func(a *Agent) {
		if addr != "" {
			a.grpcAddress = addr
		}
	}
}

func WithRetryTimer(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.retryTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTelemetryPath sets the JS path the agent state is published under.
func WithTelemetryPath(p string) Option {
	return func(a *Agent) {
		if p != "" {
			a.telemetryPath = p
		}
	}
}

// WithCoordinatorOptions passes opts to the transaction coordinator the agent
// creates.
func WithCoordinatorOptions(opts ...nb.Option) Option {
	return func(a *Agent) {
		a.coordOpts = append(a.coordOpts, opts...)
	}
}

func newAgent(name string, opts ...Option) *Agent {
	a := &Agent{
		Name:          name,
		grpcAddress:   defaultGRPCAddress,
		retryTimeout:  defaultRetryTimeout,
		telemetryPath: defaultTelemetryPath,
		logger:        slog.Default(),
		running:       dnode.NewRoot(),
		configTrx:     make([]*ndk.ConfigNotification, 0),
		ifaces:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("agent", name)
	a.telemetry = a
	return a
}

// New connects to the NDK server and registers the agent. The returned
// context carries the agent name metadata the NDK server expects on every
// call.
func New(ctx context.Context, name string, opts ...Option) (*Agent, context.Context, error) {
	a := newAgent(name, opts...)
	ctx = metadata.AppendToOutgoingContext(ctx, "agent_name", name)

	var err error
	a.GRPCConn, err = grpc.NewClient(a.grpcAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, ctx, fmt.Errorf("grpc dial failed: %w", err)
	}
	a.SdkMgrServiceClient = ndk.NewSdkMgrServiceClient(a.GRPCConn)

	nctx, cancel := context.WithTimeout(ctx, a.retryTimeout)
	defer cancel()
	r, err := a.SdkMgrServiceClient.AgentRegister(nctx, &ndk.AgentRegistrationRequest{})
	if err != nil {
		a.GRPCConn.Close()
		return nil, ctx, fmt.Errorf("agent %s registration failed: %w", a.Name, err)
	}
	if r.GetStatus() != ndk.SdkMgrStatus_kSdkMgrSuccess {
		a.GRPCConn.Close()
		return nil, ctx, fmt.Errorf("agent %s registration failed: %s: %s", a.Name, r.GetStatus(), r.GetErrorStr())
	}
	a.AppID = r.GetAppId()
	a.logger.Info("registered", "status", r.GetStatus(), "app-id", a.AppID)

	// create telemetry and notifications Clients
	a.TelemetryServiceClient = ndk.NewSdkMgrTelemetryServiceClient(a.GRPCConn)
	a.NotificationServiceClient = ndk.NewSdkNotificationServiceClient(a.GRPCConn)

	a.coord = nb.New(NewEngine(a.telemetry, a.telemetryPath, a.logger),
		append([]nb.Option{nb.WithLogger(a.logger)}, a.coordOpts...)...)
	return a, ctx, nil
}

func (a *Agent) Coordinator() *nb.Coordinator { return a.coord }

// Close unregisters the agent and closes the NDK connection.
func (a *Agent) Close(ctx context.Context) error {
	_, err := a.SdkMgrServiceClient.AgentUnRegister(ctx, &ndk.AgentRegistrationRequest{})
	if cerr := a.GRPCConn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *Agent) CreateGNMIClient(ctx context.Context, tc *types.TargetConfig) error {
	if tc.Address == "" {
		tc.Address = defaultGNMIAddress
	}
	if tc.Insecure == nil && tc.SkipVerify == nil {
		tc.Insecure = new(bool)
		*tc.Insecure = true
	}
	a.Target = target.NewTarget(tc)
	return a.Target.CreateGNMIClient(ctx)
}

func (a *Agent) KeepAlive(ctx context.Context, period time.Duration) {
	newTicker := time.NewTicker(period)
	defer newTicker.Stop()
	for {
		select {
		case <-newTicker.C:
			keepAliveResponse, err := a.SdkMgrServiceClient.KeepAlive(ctx, &ndk.KeepAliveRequest{})
			if err != nil {
				a.logger.Warn("failed to send keep alive request", "error", err)
				continue
			}
			a.logger.Debug("received keep alive response", "status", keepAliveResponse.GetStatus())
		case <-ctx.Done():
			a.logger.Info("shutting down keep alives", "reason", ctx.Err())
			return
		}
	}
}
