package dashorch

import (
	"net"
	"strconv"

	"github.com/switchctl/switchctl/dashorch/dpu"
)

// RuleType distinguishes the two ACL rules an ENI may own.
type RuleType int

// RuleType constants. Their ordinal forms the priority offset from
// BasePriority, so TUNNEL_TERM always outranks NO_TUNNEL_TERM for the
// same ENI.
const (
	NoTunnelTerm RuleType = iota
	TunnelTerm
)

// BasePriority is the priority of the NO_TUNNEL_TERM rule; TUNNEL_TERM
// is BasePriority+1.
const BasePriority = 9996

// RuleState is a rule's installation state machine.
type RuleState int

// RuleState constants.
const (
	Pending RuleState = iota
	Installed
	Uninstalled
	Failed
)

type updateType int

const (
	invalid updateType = iota
	idempotent
	create
	primaryUpdate
)

// Rule is one ACL rule owned by an Eni — the NO_TUNNEL_TERM rule
// always exists once the Eni is created; the TUNNEL_TERM rule exists
// only while at least one of the Eni's endpoints is LOCAL.
type Rule struct {
	typ   RuleType
	state RuleState
	nh    NextHop
}

func newRule(typ RuleType) *Rule {
	return &Rule{typ: typ, state: Pending}
}

// State reports the rule's current RuleState.
func (r *Rule) State() RuleState { return r.state }

func (r *Rule) key(eni *Eni) string {
	key := "ENI:" + eni.Key()
	if r.typ == TunnelTerm {
		key += "_TERM"
	}
	return key
}

// resolvePrimary looks up the DPU type and forwarding endpoint IP for
// a vdpu id: LOCAL DPUs forward to their PA address, CLUSTER DPUs to
// their NPU address.
func resolvePrimary(ctx *Context, primaryID string) (dpu.DpuType, net.IP, bool) {
	typ, ok := ctx.DPUs.Type(primaryID)
	if !ok {
		return 0, nil, false
	}
	if typ == dpu.DpuLocal {
		ip, ok := ctx.DPUs.PaV4(primaryID)
		return typ, ip, ok
	}
	ip, ok := ctx.DPUs.NpuV4(primaryID)
	return typ, ip, ok
}

// processUpdate classifies the change fire must apply, mirroring the
// original's preference order exactly: TUNNEL_TERM rules pin their
// primary to the ENI's first LOCAL endpoint rather than the ENI's
// configured primary. The fallthrough case (no primary change, next
// hop not yet RESOLVED) deliberately returns primaryUpdate — its
// default at function entry in the source this is ported from — so
// fire retries nh.Resolve without mistaking "no change" for INVALID.
func (r *Rule) processUpdate(ctx *Context, eni *Eni) updateType {
	primaryID := eni.Primary
	if r.typ == TunnelTerm {
		local, ok := eni.FindLocalEndpoint(ctx)
		if !ok {
			return invalid
		}
		primaryID = local
	}

	primaryType, primaryEndpoint, ok := resolvePrimary(ctx, primaryID)
	if !ok {
		return invalid
	}

	result := primaryUpdate
	switch {
	case r.nh == nil:
		result = create
	case r.nh.Type() != primaryType || !r.nh.Endpoint().Equal(primaryEndpoint):
		result = primaryUpdate
	case r.nh.Status() == Resolved:
		return idempotent
	}

	if result == create || result == primaryUpdate {
		if r.nh != nil {
			r.nh.Destroy()
		}
		r.nh = newNextHop(primaryType, primaryEndpoint)
	}

	r.nh.Resolve(ctx, eni)
	return result
}

// fire re-evaluates the rule against the ENI's current state and
// installs, updates, or tears down its ACL row accordingly.
func (r *Rule) fire(ctx *Context, eni *Eni) {
	result := r.processUpdate(ctx, eni)

	if result == invalid {
		r.state = Failed
		return
	}
	if result == idempotent {
		return
	}

	key := r.key(eni)

	if r.state == Installed && result == primaryUpdate {
		if err := ctx.deleteAclRule(key); err != nil {
			ctx.logger.Printf("dashorch: delete acl rule %s: %v", key, err)
		}
		r.state = Uninstalled
	}

	if r.nh.Status() != Resolved {
		r.state = Pending
		return
	}

	vip, err := ctx.VIP()
	if err != nil {
		ctx.logger.Printf("dashorch: resolve vip for rule %s: %v", key, err)
		r.state = Pending
		return
	}

	fields := map[string]string{
		"priority":        strconv.Itoa(BasePriority + int(r.typ)),
		"match_dst_ip":    vip.String(),
		"inner_dst_mac":   eni.MAC.String(),
		"redirect_action": r.nh.RedirectValue(),
	}
	if r.typ == TunnelTerm {
		fields["tunnel_term"] = "true"
	}

	if err := ctx.createAclRule(key, fields); err != nil {
		ctx.logger.Printf("dashorch: create acl rule %s: %v", key, err)
		r.state = Pending
		return
	}
	r.state = Installed
}

// destroy tears down an installed rule's ACL row and next-hop state.
func (r *Rule) destroy(ctx *Context, eni *Eni) {
	if r.state != Installed {
		return
	}
	key := r.key(eni)
	if err := ctx.deleteAclRule(key); err != nil {
		ctx.logger.Printf("dashorch: delete acl rule %s: %v", key, err)
	}
	if r.nh != nil {
		r.nh.Destroy()
		r.nh = nil
	}
	r.state = Uninstalled
}
