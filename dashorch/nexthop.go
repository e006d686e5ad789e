package dashorch

import (
	"net"
	"strconv"

	"github.com/switchctl/switchctl/dashorch/dpu"
)

// A ResolveStatus tracks whether a next-hop's neighbor has been
// discovered yet.
type ResolveStatus int

// ResolveStatus constants.
const (
	Unresolved ResolveStatus = iota
	Resolved
)

// A NextHop is the tagged-variant binding a rule holds: either a LOCAL
// endpoint reached directly, or a REMOTE one reached across a tunnel.
// Both share one operation set so callers never type-switch on which
// variant they hold.
type NextHop interface {
	// Resolve attempts to discover the next-hop's neighbor, updating
	// its ResolveStatus.
	Resolve(ctx *Context, eni *Eni)
	// Destroy releases anything Resolve acquired. Local next-hops hold
	// nothing extra; the method exists so both variants share the
	// interface.
	Destroy()
	// RedirectValue is the string written to the ACL rule's redirect
	// action.
	RedirectValue() string
	Status() ResolveStatus
	Type() dpu.DpuType
	Endpoint() net.IP
}

// newNextHop builds the NextHop variant matching typ.
func newNextHop(typ dpu.DpuType, endpoint net.IP) NextHop {
	if typ == dpu.DpuLocal {
		return &localNextHop{endpoint: endpoint, status: Unresolved}
	}
	return &remoteNextHop{endpoint: endpoint, status: Unresolved}
}

type localNextHop struct {
	endpoint net.IP
	status   ResolveStatus
}

func (n *localNextHop) Type() dpu.DpuType     { return dpu.DpuLocal }
func (n *localNextHop) Endpoint() net.IP      { return n.endpoint }
func (n *localNextHop) Status() ResolveStatus { return n.status }
func (n *localNextHop) Destroy()              {}

func (n *localNextHop) Resolve(ctx *Context, eni *Eni) {
	alias, ok := ctx.Neighbors.AliasOf(n.endpoint)
	if !ok {
		n.status = Unresolved
		return
	}
	if ctx.Neighbors.IsResolved(n.endpoint, alias) {
		n.status = Resolved
		return
	}
	ctx.Neighbors.Resolve(n.endpoint, alias)
	n.status = Unresolved
}

func (n *localNextHop) RedirectValue() string {
	return n.endpoint.String()
}

type remoteNextHop struct {
	endpoint net.IP
	status   ResolveStatus
	tunnel   string
	vni      string
}

func (n *remoteNextHop) Type() dpu.DpuType     { return dpu.DpuCluster }
func (n *remoteNextHop) Endpoint() net.IP      { return n.endpoint }
func (n *remoteNextHop) Status() ResolveStatus { return n.status }
func (n *remoteNextHop) Destroy()              {}

func (n *remoteNextHop) Resolve(ctx *Context, eni *Eni) {
	tunnel, ok := ctx.VNET.TunnelOf(eni.Vnet)
	if !ok {
		n.status = Unresolved
		return
	}
	vni, ok := ctx.VNET.VNIOf(eni.Vnet)
	if !ok {
		n.status = Unresolved
		return
	}
	n.tunnel = tunnel
	n.vni = strconv.FormatUint(vni, 10)
	n.status = Resolved
}

// RedirectValue for a remote next-hop has the form the downstream ACL
// layer expects: endpoint@tunnel,vni.
func (n *remoteNextHop) RedirectValue() string {
	return n.endpoint.String() + "@" + n.tunnel + "," + n.vni
}
