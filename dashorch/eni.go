package dashorch

import (
	"fmt"
	"net"
	"strings"

	"github.com/switchctl/switchctl/dashorch/dpu"
)

// Eni is one tenant elastic network interface: a MAC inside a VNET,
// forwarded to whichever of its vdpus is currently primary. Only the
// Orchestrator that owns an Eni's container is expected to call
// Create/Update/Destroy/FireAllRules on it.
type Eni struct {
	MAC     net.HardwareAddr
	Vnet    string
	Ids     []string // vdpu ids this ENI may forward to
	Primary string   // the currently active vdpu id

	rules map[RuleType]*Rule
}

func newEni(vnet string, mac net.HardwareAddr) *Eni {
	return &Eni{Vnet: vnet, MAC: mac, rules: make(map[RuleType]*Rule)}
}

// Key is the row-key suffix an owned ACL rule uses: "<vnet>_<mac>"
// with the MAC rendered as colon-free uppercase hex.
func (e *Eni) Key() string {
	return e.Vnet + "_" + formatMacKey(e.MAC)
}

func formatMacKey(mac net.HardwareAddr) string {
	return strings.ToUpper(strings.ReplaceAll(mac.String(), ":", ""))
}

// FindLocalEndpoint returns the first of the Eni's vdpu ids whose
// primary DPU is LOCAL, logging if more than one exists (the original
// proceeds with the first either way).
func (e *Eni) FindLocalEndpoint(ctx *Context) (string, bool) {
	found := ""
	for _, id := range e.Ids {
		typ, ok := ctx.DPUs.Type(id)
		if !ok || typ != dpu.DpuLocal {
			continue
		}
		if found == "" {
			found = id
		} else {
			ctx.logger.Printf("dashorch: multiple local endpoints for eni %s, proceeding with %s", e.Key(), found)
		}
	}
	return found, found != ""
}

// Create validates and stores the vdpu list and primary id, builds the
// NO_TUNNEL_TERM rule unconditionally and the TUNNEL_TERM rule only if
// at least one endpoint is LOCAL, then fires both.
func (e *Eni) Create(ctx *Context, ids []string, primary string) error {
	if len(ids) == 0 || primary == "" {
		return fmt.Errorf("dashorch: invalid eni %s request: missing vdpu_ids/primary_vdpu", e.Key())
	}

	e.Ids = ids
	e.Primary = primary

	e.rules[NoTunnelTerm] = newRule(NoTunnelTerm)
	if _, ok := e.FindLocalEndpoint(ctx); ok {
		e.rules[TunnelTerm] = newRule(TunnelTerm)
	}

	e.FireAllRules(ctx)
	return nil
}

// Update applies a primary-id change. Only the primary id is expected
// to change after creation; a request missing it is a logic error.
func (e *Eni) Update(ctx *Context, primary string) error {
	if primary == "" {
		return fmt.Errorf("dashorch: invalid eni %s update: missing primary_vdpu", e.Key())
	}
	if primary == e.Primary {
		return nil
	}
	e.Primary = primary
	e.FireAllRules(ctx)
	return nil
}

// FireAllRules re-evaluates and re-applies every rule this Eni owns.
func (e *Eni) FireAllRules(ctx *Context) {
	for _, typ := range []RuleType{NoTunnelTerm, TunnelTerm} {
		if r, ok := e.rules[typ]; ok {
			r.fire(ctx, e)
		}
	}
}

// DestroyAll tears down every rule this Eni owns and clears them.
func (e *Eni) DestroyAll(ctx *Context) {
	for _, r := range e.rules {
		r.destroy(ctx, e)
	}
	e.rules = make(map[RuleType]*Rule)
}

// OnNeighborUpdate reacts to a neighbor-resolution notification for a
// DPU this Eni is hosted on. add=true re-fires every rule so a
// now-resolved next hop gets installed; add=false is a deliberate
// no-op — retracting an installed ACL rule on neighbor loss would need
// a tear-down path this core doesn't have.
func (e *Eni) OnNeighborUpdate(ctx *Context, add bool) {
	if !add {
		return
	}
	e.FireAllRules(ctx)
}
