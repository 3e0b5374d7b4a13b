package agent

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/nokia/srlinux-ndk-go/ndk"
)

// wait sleeps for the retry timeout, it returns false if ctx is done first.
func (a *Agent) wait(ctx context.Context) bool {
	a.logger.Info("retrying", "in", a.retryTimeout)
	t := time.NewTimer(a.retryTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *Agent) createNotificationSubscription(ctx context.Context) (uint64, uint64, error) {
CREATESUB:
	// get subscription and streamID
	notificationResponse, err := a.SdkMgrServiceClient.NotificationRegister(ctx,
		&ndk.NotificationRegisterRequest{
			Op: ndk.NotificationRegisterRequest_Create,
		})
	if err != nil {
		a.logger.Warn("could not register for notifications", "error", err)
		if !a.wait(ctx) {
			return 0, 0, ctx.Err()
		}
		goto CREATESUB
	}
	if notificationResponse.GetStatus() != ndk.SdkMgrStatus_kSdkMgrSuccess {
		a.logger.Warn("notification subscribe failed", "status", notificationResponse.GetStatus())
		if !a.wait(ctx) {
			return 0, 0, ctx.Err()
		}
		goto CREATESUB
	}
	return notificationResponse.GetSubId(), notificationResponse.GetStreamId(), nil
}

func (a *Agent) startNotificationStream(ctx context.Context, req *ndk.NotificationRegisterRequest, subID uint64, streamChan chan *ndk.NotificationStreamResponse) {
	logger := a.logger.With("subscription-id", subID, "stream-id", req.GetStreamId())
	logger.Info("starting stream")
	defer close(streamChan)
	defer func() {
		logger.Info("deleting subscription")
		_, err := a.SdkMgrServiceClient.NotificationRegister(context.WithoutCancel(ctx), &ndk.NotificationRegisterRequest{
			Op:    ndk.NotificationRegisterRequest_DeleteSubscription,
			SubId: subID,
		})
		if err != nil {
			logger.Warn("failed to delete subscription", "error", err)
		}
	}()
GETSTREAM:
	registerResponse, err := a.SdkMgrServiceClient.NotificationRegister(ctx, req)
	if err != nil {
		logger.Warn("failed registering to notification", "error", err)
		if !a.wait(ctx) {
			return
		}
		goto GETSTREAM
	}
	if registerResponse.GetStatus() == ndk.SdkMgrStatus_kSdkMgrFailed {
		logger.Warn("failed to get stream", "status", registerResponse.GetStatus())
		if !a.wait(ctx) {
			return
		}
		goto GETSTREAM
	}
	stream, err := a.NotificationServiceClient.NotificationStream(ctx,
		&ndk.NotificationStreamRequest{
			StreamId: req.GetStreamId(),
		})
	if err != nil {
		logger.Warn("failed creating stream client", "error", err)
		if !a.wait(ctx) {
			return
		}
		goto GETSTREAM
	}
	for {
		ev, err := stream.Recv()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			logger.Warn("received EOF")
			if !a.wait(ctx) {
				return
			}
			goto GETSTREAM
		}
		if err != nil {
			logger.Warn("failed to receive notification", "error", err)
			if !a.wait(ctx) {
				return
			}
			goto GETSTREAM
		}
		select {
		case streamChan <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// startStream creates a subscription and adds req, which only carries the
// subscription type, to its stream.
func (a *Agent) startStream(ctx context.Context, kind string, req *ndk.NotificationRegisterRequest) (chan *ndk.NotificationStreamResponse, error) {
	subID, streamID, err := a.createNotificationSubscription(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("notification registration", "type", kind, "subscription-id", subID, "stream-id", streamID)
	req.Op = ndk.NotificationRegisterRequest_AddSubscription
	req.StreamId = streamID
	streamChan := make(chan *ndk.NotificationStreamResponse)
	go a.startNotificationStream(ctx, req, subID, streamChan)
	return streamChan, nil
}

func (a *Agent) StartConfigNotificationStream(ctx context.Context) (chan *ndk.NotificationStreamResponse, error) {
	return a.startStream(ctx, "config", &ndk.NotificationRegisterRequest{
		SubscriptionTypes: &ndk.NotificationRegisterRequest_Config{
			Config: new(ndk.ConfigSubscriptionRequest),
		},
	})
}

func (a *Agent) StartInterfaceNotificationStream(ctx context.Context, ifName string) (chan *ndk.NotificationStreamResponse, error) {
	subType := new(ndk.NotificationRegisterRequest_Intf)
	if ifName != "" {
		subType.Intf = &ndk.InterfaceSubscriptionRequest{
			Key: &ndk.InterfaceKey{
				IfName: ifName,
			},
		}
	}
	return a.startStream(ctx, "interface", &ndk.NotificationRegisterRequest{SubscriptionTypes: subType})
}

func (a *Agent) StartBFDSessionNotificationStream(ctx context.Context, srcIP, dstIP net.IP, instance *uint32) (chan *ndk.NotificationStreamResponse, error) {
	bfdSession := &ndk.BfdSessionSubscriptionRequest{
		Key: new(ndk.BfdmgrGeneralSessionKeyPb),
	}
	if srcIP != nil {
		bfdSession.Key.SrcIpAddr = &ndk.IpAddressPb{Addr: srcIP}
	}
	if dstIP != nil {
		bfdSession.Key.DstIpAddr = &ndk.IpAddressPb{Addr: dstIP}
	}
	if instance != nil {
		bfdSession.Key.InstanceId = *instance
	}
	subType := new(ndk.NotificationRegisterRequest_BfdSession)
	if srcIP != nil || dstIP != nil || instance != nil {
		subType.BfdSession = bfdSession
	}
	return a.startStream(ctx, "bfd-session", &ndk.NotificationRegisterRequest{SubscriptionTypes: subType})
}
