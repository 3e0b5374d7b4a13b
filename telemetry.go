package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nokia/srlinux-ndk-go/ndk"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

func (a *Agent) TelemetryAddOrUpdate(ctx context.Context, jsPath string, jsData string) error {
	telReq := &ndk.TelemetryUpdateRequest{
		State: []*ndk.TelemetryInfo{
			{
				Key: &ndk.TelemetryKey{
					JsPath: jsPath,
				},
				Data: &ndk.TelemetryData{
					JsonContent: jsData,
				},
			},
		},
	}
	a.dump("telemetry update", telReq)

	r, err := a.TelemetryServiceClient.TelemetryAddOrUpdate(ctx, telReq)
	if err != nil {
		return fmt.Errorf("could not update telemetry key %s: %w", jsPath, err)
	}
	if r.GetStatus() != ndk.SdkMgrStatus_kSdkMgrSuccess {
		return fmt.Errorf("telemetry update failed: %s: %s", r.GetStatus(), r.GetErrorStr())
	}
	return nil
}

func (a *Agent) TelemetryDelete(ctx context.Context, jsPath string) error {
	telReq := &ndk.TelemetryDeleteRequest{
		Key: []*ndk.TelemetryKey{
			{
				JsPath: jsPath,
			},
		},
	}
	a.dump("telemetry delete", telReq)

	r, err := a.TelemetryServiceClient.TelemetryDelete(ctx, telReq)
	if err != nil {
		return fmt.Errorf("could not delete telemetry key %s: %w", jsPath, err)
	}
	if r.GetStatus() != ndk.SdkMgrStatus_kSdkMgrSuccess {
		return fmt.Errorf("telemetry delete failed: %s", r.GetErrorStr())
	}
	return nil
}

// dump logs m in text format at debug level.
func (a *Agent) dump(msg string, m proto.Message) {
	if !a.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	b, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		a.logger.Debug("proto marshal failed", "error", err)
		return
	}
	a.logger.Debug(msg, "request", string(b))
}
