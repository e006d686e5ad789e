// Package dpu builds the read-only DPU/vDPU lookup table the ENI
// orchestrator resolves endpoints against. It is populated once, from
// a point-in-time snapshot of three configuration tables, and never
// mutated afterward.
package dpu

import (
	"log"
	"net"

	"github.com/switchctl/switchctl/reqparser"
)

// A DpuType distinguishes a DPU physically attached to this switch
// from one reachable only across the fabric.
type DpuType int

// DpuType constants.
const (
	DpuLocal DpuType = iota
	DpuCluster
)

const keySep = '|'

// Schemas for the three tables Populate reads. State on a DPU row is
// optional — its presence only matters to filter out down DPUs, it is
// not required on every row.
var (
	DpuSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes: map[string]reqparser.FieldType{
			"state":   reqparser.TypeString,
			"pa_ipv4": reqparser.TypeIP,
			"pa_ipv6": reqparser.TypeIP,
		},
		Mandatory: []string{"pa_ipv4"},
	}

	RemoteDpuSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes: map[string]reqparser.FieldType{
			"pa_ipv4":  reqparser.TypeIP,
			"pa_ipv6":  reqparser.TypeIP,
			"npu_ipv4": reqparser.TypeIP,
			"npu_ipv6": reqparser.TypeIP,
		},
		Mandatory: []string{"pa_ipv4", "npu_ipv4"},
	}

	VdpuSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes:    map[string]reqparser.FieldType{"main_dpu_ids": reqparser.TypeStringList},
		Mandatory:    []string{"main_dpu_ids"},
	}
)

// A Snapshot is a read-only, point-in-time view of one configuration
// table — everything Populate needs, without committing to any
// particular database client.
type Snapshot interface {
	Keys() []string
	Get(key string) (fields map[string]string, ok bool)
}

type dpuData struct {
	typ   DpuType
	paV4  net.IP
	npuV4 net.IP
}

// Registry is the DPU/vDPU lookup table. It is built once by Populate
// and is safe for concurrent reads thereafter, since nothing mutates
// it after population.
type Registry struct {
	logger *log.Logger
	dpus   map[string]dpuData
	vdpus  map[string][]string
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: log.Default(),
		dpus:   make(map[string]dpuData),
		vdpus:  make(map[string][]string),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Populate reads the DPU and REMOTE_DPU tables to build the DPU map,
// then the vDPU table to group DPUs under each vDPU id, dropping any
// DPU id a vDPU references that wasn't found in either DPU table.
// Populate is meant to run exactly once, at lazy init.
func (r *Registry) Populate(dpuTable, remoteDpuTable, vdpuTable Snapshot) {
	r.processDpuTable(dpuTable)
	r.processRemoteDpuTable(remoteDpuTable)
	r.processVdpuTable(vdpuTable)
}

func (r *Registry) processDpuTable(t Snapshot) {
	for _, key := range t.Keys() {
		fields, ok := t.Get(key)
		if !ok {
			continue
		}
		req, err := reqparser.Parse(DpuSchema, keySep, reqparser.OpSet, key, fields)
		if err != nil {
			r.logger.Printf("dpu: parse DPU row %s: %v", key, err)
			continue
		}
		if req.HasAttr("state") && req.AttrString("state") == "down" {
			r.logger.Printf("dpu: skipping DPU %s, state is down", key)
			continue
		}
		r.dpus[key] = dpuData{typ: DpuLocal, paV4: req.AttrIP("pa_ipv4")}
	}
}

func (r *Registry) processRemoteDpuTable(t Snapshot) {
	for _, key := range t.Keys() {
		fields, ok := t.Get(key)
		if !ok {
			continue
		}
		req, err := reqparser.Parse(RemoteDpuSchema, keySep, reqparser.OpSet, key, fields)
		if err != nil {
			r.logger.Printf("dpu: parse REMOTE_DPU row %s: %v", key, err)
			continue
		}
		r.dpus[key] = dpuData{typ: DpuCluster, paV4: req.AttrIP("pa_ipv4"), npuV4: req.AttrIP("npu_ipv4")}
	}
}

func (r *Registry) processVdpuTable(t Snapshot) {
	for _, key := range t.Keys() {
		fields, ok := t.Get(key)
		if !ok {
			continue
		}
		req, err := reqparser.Parse(VdpuSchema, keySep, reqparser.OpSet, key, fields)
		if err != nil {
			r.logger.Printf("dpu: parse VDPU row %s: %v", key, err)
			continue
		}
		for _, dpuID := range req.AttrStringList("main_dpu_ids") {
			if _, ok := r.dpus[dpuID]; !ok {
				r.logger.Printf("dpu: vdpu %s references unknown dpu %s, dropped", key, dpuID)
				continue
			}
			r.vdpus[key] = append(r.vdpus[key], dpuID)
		}
	}
}

// Ids returns every known vDPU id.
func (r *Registry) Ids() []string {
	ids := make([]string, 0, len(r.vdpus))
	for id := range r.vdpus {
		ids = append(ids, id)
	}
	return ids
}

// DpuID returns the primary (first) DPU id backing vdpuID.
func (r *Registry) DpuID(vdpuID string) (string, bool) {
	ids, ok := r.vdpus[vdpuID]
	if !ok || len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Type returns the DpuType of vdpuID's primary DPU.
func (r *Registry) Type(vdpuID string) (DpuType, bool) {
	id, ok := r.DpuID(vdpuID)
	if !ok {
		return 0, false
	}
	d, ok := r.dpus[id]
	return d.typ, ok
}

// PaV4 returns the physical-access IPv4 address of vdpuID's primary DPU.
func (r *Registry) PaV4(vdpuID string) (net.IP, bool) {
	id, ok := r.DpuID(vdpuID)
	if !ok {
		return nil, false
	}
	d, ok := r.dpus[id]
	return d.paV4, ok
}

// NpuV4 returns the NPU-facing IPv4 address of vdpuID's primary DPU
// (only meaningful for CLUSTER DPUs).
func (r *Registry) NpuV4(vdpuID string) (net.IP, bool) {
	id, ok := r.DpuID(vdpuID)
	if !ok {
		return nil, false
	}
	d, ok := r.dpus[id]
	return d.npuV4, ok
}
