package agent

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/nokia/srlinux-ndk-go/ndk"
	"github.com/tidwall/sjson"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/dnode"
	"github.com/karimra/srl-bfd-agent/nb"
)

const commitEnd = ".commit.end"

var errBadAddress = errors.New("invalid address")

func (a *Agent) HandleNotification(ctx context.Context, notif *ndk.Notification) error {
	if notif == nil {
		return nil
	}
	switch notif := notif.SubscriptionTypes.(type) {
	case *ndk.Notification_Config:
		return a.handleConfig(ctx, notif.Config)
	case *ndk.Notification_Intf:
		a.handleIntf(notif.Intf)
	case *ndk.Notification_BfdSession:
		return a.handleBfdSession(ctx, notif.BfdSession)
	}
	return nil
}

// Config

// handleConfig buffers the notifications of a transaction until the commit
// end marker, then applies them all to a candidate tree and commits it.
func (a *Agent) handleConfig(ctx context.Context, n *ndk.ConfigNotification) error {
	a.m.Lock()
	defer a.m.Unlock()
	if n.GetKey().GetJsPath() != commitEnd {
		a.configTrx = append(a.configTrx, n)
		return nil
	}
	defer func() { a.configTrx = make([]*ndk.ConfigNotification, 0) }()

	candidate := a.running.Clone()
	for _, cn := range a.configTrx {
		a.dump("config notification", cn)
		op := configSet
		if cn.GetOp() == ndk.SdkMgrOperation_Delete {
			op = configDelete
		}
		if err := applyConfig(candidate, op, cn.GetKey().GetJsPath(), cn.GetKey().GetKeys(), cn.GetData().GetJson()); err != nil {
			a.publishStatus(ctx, "", err)
			return err
		}
	}
	_, err := a.commit(ctx, candidate)
	return err
}

// Commit applies tree as the new configuration, it is used for the startup
// configuration.
func (a *Agent) Commit(ctx context.Context, tree *dnode.Node) (*nb.Result, error) {
	a.m.Lock()
	defer a.m.Unlock()
	return a.commit(ctx, tree)
}

func (a *Agent) commit(ctx context.Context, candidate *dnode.Node) (*nb.Result, error) {
	res, err := a.coord.Commit(ctx, a.running, candidate)
	id := ""
	if res != nil {
		id = res.ID
	}
	if err != nil {
		// the candidate is dropped, the next transaction starts again from
		// the running tree
		a.publishStatus(ctx, id, err)
		return res, err
	}
	a.running = candidate
	a.publishStatus(ctx, id, nil)
	return res, nil
}

// publishStatus reports the outcome of the last transaction.
func (a *Agent) publishStatus(ctx context.Context, id string, err error) {
	js, serr := transactionStatus(id, err)
	if serr != nil {
		a.logger.Error("failed to encode transaction status", "error", serr)
		return
	}
	if perr := a.telemetry.TelemetryAddOrUpdate(ctx, a.telemetryPath, js); perr != nil {
		a.logger.Warn("failed to publish transaction status", "error", perr)
	}
}

func transactionStatus(id string, err error) (string, error) {
	outcome := nb.OK.String()
	msg := ""
	if err != nil {
		outcome = nb.ValidationError.String()
		msg = err.Error()
		var nbErr *nb.Error
		if errors.As(err, &nbErr) {
			outcome = nbErr.Outcome.String()
		}
	}
	js, serr := sjson.Set("{}", "last_transaction.id", id)
	if serr != nil {
		return "", serr
	}
	if js, serr = sjson.Set(js, "last_transaction.outcome", outcome); serr != nil {
		return "", serr
	}
	if msg != "" {
		return sjson.Set(js, "last_transaction.error", msg)
	}
	return js, nil
}

// Interface

func (a *Agent) handleIntf(n *ndk.InterfaceNotification) {
	a.ifm.Lock()
	defer a.ifm.Unlock()
	switch n.GetOp() {
	case ndk.SdkMgrOperation_Create, ndk.SdkMgrOperation_Change:
		a.ifaces[n.GetKey().GetIfName()] = struct{}{}
	case ndk.SdkMgrOperation_Delete:
		delete(a.ifaces, n.GetKey().GetIfName())
	}
}

// HasInterface reports whether the system has the interface or
// subinterface ifname.
func (a *Agent) HasInterface(ifname string) bool {
	a.ifm.RLock()
	defer a.ifm.RUnlock()
	_, ok := a.ifaces[ifname]
	return ok
}

// BFDSession

// handleBfdSession accounts the sessions the system BFD manager reports as
// held by another producer.
func (a *Agent) handleBfdSession(ctx context.Context, n *ndk.BfdSessionNotification) error {
	k, err := bfdSessionKey(n.GetKey())
	if err != nil {
		return err
	}
	a.m.Lock()
	defer a.m.Unlock()
	switch n.GetOp() {
	case ndk.SdkMgrOperation_Create:
		k = a.protocolKey(k, func(*bfd.Session) bool { return true })
		if _, err := a.coord.Acquire(ctx, k); err != nil {
			return fmt.Errorf("session %s: %w", k, err)
		}
	case ndk.SdkMgrOperation_Delete:
		k = a.protocolKey(k, func(s *bfd.Session) bool { return s.Has(bfd.FlagProtocol) })
		a.coord.Release(ctx, k)
	}
	return nil
}

// protocolKey picks the registered session a reported key refers to. A
// session configured without source-addr also stands for the sessions the
// BFD manager reports with a local address.
func (a *Agent) protocolKey(k bfd.Key, match func(*bfd.Session) bool) bfd.Key {
	if !k.Local.IsValid() {
		return k
	}
	reg := a.coord.Registry()
	if s, ok := reg.Lookup(k); ok && match(s) {
		return k
	}
	wild := k
	wild.Local = netip.Addr{}
	if s, ok := reg.Lookup(wild); ok && match(s) {
		return wild
	}
	return k
}

// bfdSessionKey maps an NDK session key to a single-hop session key. Network
// instance 0 is the default VRF.
func bfdSessionKey(k *ndk.BfdmgrGeneralSessionKeyPb) (bfd.Key, error) {
	dst, ok := netip.AddrFromSlice(k.GetDstIpAddr().GetAddr())
	if !ok {
		return bfd.Key{}, fmt.Errorf("destination: %w", errBadAddress)
	}
	src := ""
	if b := k.GetSrcIpAddr().GetAddr(); len(b) > 0 {
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return bfd.Key{}, fmt.Errorf("source: %w", errBadAddress)
		}
		src = addr.Unmap().String()
	}
	vrf := bfd.DefaultVRF
	if id := k.GetInstanceId(); id != 0 {
		vrf = strconv.FormatUint(uint64(id), 10)
	}
	return bfd.BuildKey(false, dst.Unmap().String(), src, bfd.WildcardInterface, vrf)
}
