package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/openconfig/gnmi/proto/gnmi"
	"github.com/openconfig/gnmic/pkg/path"
)

type SystemInfo struct {
	Name                string
	Version             string
	ChassisType         string
	ChassisMacAddress   string
	ChassisSerialNumber string
}

var sysInfoPaths = []*gnmi.Path{
	{
		Elem: []*gnmi.PathElem{
			{Name: "system"},
			{Name: "name"},
			{Name: "host-name"},
		},
	},
	{
		Elem: []*gnmi.PathElem{
			{Name: "system"},
			{Name: "information"},
			{Name: "version"},
		},
	},
	{
		Elem: []*gnmi.PathElem{
			{Name: "platform"},
			{Name: "chassis"},
		},
	},
}

// subinterfacesPath selects the interfaces a BFD session can be bound to.
const subinterfacesPath = "/interface[name=*]/subinterface[index=*]/name"

func (a *Agent) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rsp, err := a.Target.Get(sctx,
		&gnmi.GetRequest{
			Path:     sysInfoPaths,
			Type:     gnmi.GetRequest_STATE,
			Encoding: gnmi.Encoding_ASCII,
		})
	if err != nil {
		return nil, err
	}
	sysInfo := new(SystemInfo)
	for _, n := range rsp.GetNotification() {
		for _, u := range n.GetUpdate() {
			xpath := path.GnmiPathToXPath(u.GetPath(), true)
			switch {
			case strings.Contains(xpath, "system/name"):
				sysInfo.Name = u.GetVal().GetStringVal()
			case strings.Contains(xpath, "system/information/version"):
				sysInfo.Version = u.GetVal().GetStringVal()
			case strings.Contains(xpath, "platform/chassis/type"):
				sysInfo.ChassisType = u.GetVal().GetStringVal()
			case strings.Contains(xpath, "platform/chassis/mac-address"):
				sysInfo.ChassisMacAddress = u.GetVal().GetStringVal()
			case strings.Contains(xpath, "platform/chassis/serial-number"):
				sysInfo.ChassisSerialNumber = u.GetVal().GetStringVal()
			}
		}
	}
	a.logger.Info("system info", "name", sysInfo.Name, "version", sysInfo.Version, "chassis", sysInfo.ChassisType)
	return sysInfo, nil
}

// GetInterfaces returns the names of the interfaces and subinterfaces
// present on the system.
func (a *Agent) GetInterfaces(ctx context.Context) ([]string, error) {
	p, err := path.ParsePath(subinterfacesPath)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rsp, err := a.Target.Get(sctx,
		&gnmi.GetRequest{
			Path:     []*gnmi.Path{p},
			Type:     gnmi.GetRequest_STATE,
			Encoding: gnmi.Encoding_ASCII,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get interfaces: %w", err)
	}
	seen := make(map[string]struct{})
	names := make([]string, 0)
	add := func(name string) {
		if _, ok := seen[name]; name == "" || ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, n := range rsp.GetNotification() {
		for _, u := range n.GetUpdate() {
			add(getPathKeyVal(u.GetPath(), "interface", "name"))
			add(u.GetVal().GetStringVal())
		}
	}
	return names, nil
}

// SyncInterfaces seeds the known interfaces from gNMI, the interface
// notification stream keeps them current afterwards.
func (a *Agent) SyncInterfaces(ctx context.Context) error {
	names, err := a.GetInterfaces(ctx)
	if err != nil {
		return err
	}
	a.ifm.Lock()
	defer a.ifm.Unlock()
	for _, name := range names {
		a.ifaces[name] = struct{}{}
	}
	a.logger.Info("interfaces synced", "count", len(names))
	return nil
}

func getPathKeyVal(p *gnmi.Path, elem, key string) string {
	for _, e := range p.GetElem() {
		if e.Name == elem {
			return e.Key[key]
		}
	}
	return ""
}
