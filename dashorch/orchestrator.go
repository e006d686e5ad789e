// Package dashorch reconciles the ENI-forwarding application table
// into ACL redirect rules, resolving each ENI's primary vdpu to a
// local or tunneled next hop and reacting to late neighbor resolution
// via the shared observer hub.
package dashorch

import (
	"log"
	"net"

	"github.com/switchctl/switchctl/dashorch/dpu"
	"github.com/switchctl/switchctl/observer"
	"github.com/switchctl/switchctl/reqparser"
)

// SubjectNeighborChange is the observer subject the neighbor service
// publishes resolution events on.
const SubjectNeighborChange observer.SubjectType = 1

// NeighborUpdate is the payload carried by SubjectNeighborChange
// notifications.
type NeighborUpdate struct {
	Entry net.IP
	Add   bool
}

// EniSchema parses the ENI-forwarding application table's keys
// ("<vnet>:<mac>") and attributes. The ':' separator combined with a
// trailing MAC key item exercises reqparser's IPv6/MAC key-repair
// rule, since a raw split on ':' would otherwise fragment the MAC.
var EniSchema = reqparser.Schema{
	KeyItemTypes: []reqparser.FieldType{reqparser.TypeString, reqparser.TypeMAC},
	AttrTypes: map[string]reqparser.FieldType{
		"vdpu_ids":     reqparser.TypeStringList,
		"primary_vdpu": reqparser.TypeString,
	},
	Mandatory: []string{"primary_vdpu"},
}

const eniKeySep = ':'

// Orchestrator is the ENI-forwarding reconciler (spec.md §4.6). It is
// driven entirely by HandleChange and the observer Update callback,
// both meant to run on the single event-loop goroutine; it keeps no
// internal locking.
type Orchestrator struct {
	ctx    *Context
	logger *log.Logger

	dpuTable       dpu.Snapshot
	remoteDpuTable dpu.Snapshot
	vdpuTable      dpu.Snapshot

	enis map[string]*Eni

	// neighDpuMap maps a local endpoint's neighbor IP (as a string) to
	// its vdpu id; dpuEniMap is keyed by vdpu id, not raw DPU id. Both
	// speak in vdpu ids because the DPU registry's Ids()/Type() operate
	// on vdpu ids throughout, and FindLocalEndpoint surfaces a vdpu id.
	neighDpuMap map[string]string
	dpuEniMap   map[string]map[string]struct{}

	initialized bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger overrides the Orchestrator's default logger.
func WithOrchestratorLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator returns an Orchestrator wired to ctx and the three
// DPU-registry snapshot sources lazyInit will read on first use.
func NewOrchestrator(ctx *Context, dpuTable, remoteDpuTable, vdpuTable dpu.Snapshot, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		ctx:            ctx,
		logger:         log.Default(),
		dpuTable:       dpuTable,
		remoteDpuTable: remoteDpuTable,
		vdpuTable:      vdpuTable,
		enis:           make(map[string]*Eni),
		neighDpuMap:    make(map[string]string),
		dpuEniMap:      make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// lazyInit populates the DPU registry and speculatively requests
// resolution of every LOCAL endpoint's neighbor, so they are likely
// already resolved by the time the first rule references them. It
// runs once, on the first add operation.
func (o *Orchestrator) lazyInit() {
	if o.initialized {
		return
	}
	o.ctx.DPUs.Populate(o.dpuTable, o.remoteDpuTable, o.vdpuTable)
	o.initLocalEndpoints()
	o.initialized = true
}

func (o *Orchestrator) initLocalEndpoints() {
	for _, id := range o.ctx.DPUs.Ids() {
		typ, ok := o.ctx.DPUs.Type(id)
		if !ok || typ != dpu.DpuLocal {
			continue
		}
		endpoint, ok := o.ctx.DPUs.PaV4(id)
		if !ok {
			continue
		}
		o.neighDpuMap[endpoint.String()] = id
		o.logger.Printf("dashorch: local dpu endpoint detected %s", endpoint)

		alias, _ := o.ctx.Neighbors.AliasOf(endpoint)
		o.ctx.Neighbors.Resolve(endpoint, alias)
	}
}

// handleEniDpuMapping records or forgets that eniID is hosted on
// vdpuID, but only while vdpuID's primary DPU is LOCAL — the map only
// ever needs to steer neighbor-change events at locally hosted ENIs.
func (o *Orchestrator) handleEniDpuMapping(vdpuID, eniID string, add bool) {
	typ, ok := o.ctx.DPUs.Type(vdpuID)
	if !ok || typ != dpu.DpuLocal {
		return
	}
	if add {
		if o.dpuEniMap[vdpuID] == nil {
			o.dpuEniMap[vdpuID] = make(map[string]struct{})
		}
		o.dpuEniMap[vdpuID][eniID] = struct{}{}
		return
	}
	delete(o.dpuEniMap[vdpuID], eniID)
}

// HandleChange applies one (key, op, fields) change from the
// ENI-forwarding application table.
func (o *Orchestrator) HandleChange(op reqparser.Op, fullKey string, fields map[string]string) error {
	req, err := reqparser.Parse(EniSchema, eniKeySep, op, fullKey, fields)
	if err != nil {
		o.logger.Printf("dashorch: parse %s: %v", fullKey, err)
		return nil
	}

	if op == reqparser.OpDel {
		return o.delOperation(req)
	}
	o.lazyInit()
	return o.addOperation(req)
}

func (o *Orchestrator) addOperation(req *reqparser.Request) error {
	vnet := req.KeyString(0)
	mac := req.KeyMAC(1)
	id := mac.String()

	eni, exists := o.enis[id]
	isNew := !exists
	if isNew {
		eni = newEni(vnet, mac)
		o.enis[id] = eni
	}

	if isNew {
		ids := req.AttrStringList("vdpu_ids")
		primary := req.AttrString("primary_vdpu")
		if err := eni.Create(o.ctx, ids, primary); err != nil {
			delete(o.enis, id)
			return err
		}
		if local, ok := eni.FindLocalEndpoint(o.ctx); ok {
			o.handleEniDpuMapping(local, id, true)
		}
		return nil
	}

	return eni.Update(o.ctx, req.AttrString("primary_vdpu"))
}

func (o *Orchestrator) delOperation(req *reqparser.Request) error {
	id := req.KeyMAC(1).String()

	eni, ok := o.enis[id]
	if !ok {
		o.logger.Printf("dashorch: invalid del request for unknown eni %s", id)
		return nil
	}

	local, hadLocal := eni.FindLocalEndpoint(o.ctx)
	eni.DestroyAll(o.ctx)
	if hadLocal {
		o.handleEniDpuMapping(local, id, false)
	}
	delete(o.enis, id)
	return nil
}

// Update implements observer.Observer, reacting to neighbor-resolution
// notifications for endpoints hosted on a locally attached DPU.
func (o *Orchestrator) Update(subject observer.SubjectType, payload interface{}) {
	if subject != SubjectNeighborChange {
		return
	}
	update, ok := payload.(NeighborUpdate)
	if !ok {
		return
	}
	o.handleNeighUpdate(update)
}

func (o *Orchestrator) handleNeighUpdate(update NeighborUpdate) {
	vdpuID, ok := o.neighDpuMap[update.Entry.String()]
	if !ok {
		return
	}
	o.logger.Printf("dashorch: neighbor update: %s, add: %v", update.Entry, update.Add)

	for eniID := range o.dpuEniMap[vdpuID] {
		if eni, ok := o.enis[eniID]; ok {
			eni.OnNeighborUpdate(o.ctx, update.Add)
		}
	}
}
