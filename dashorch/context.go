package dashorch

import (
	"log"
	"net"
	"strings"

	"github.com/switchctl/switchctl/dashorch/dpu"
	"github.com/switchctl/switchctl/producer"
)

// A PortType classifies an entry in the port collaborator's map.
type PortType int

// PortType constants.
const (
	PortPHY PortType = iota
	PortLAG
	PortVLAN
)

// PortRoleDPC marks a port as internal DPU-facing wiring, excluded
// from the ACL table's external bind points.
const PortRoleDPC = "Dpc"

// PortInfo is one entry of the port collaborator's full port map.
type PortInfo struct {
	Type    PortType
	Members []string // LAG member ports; empty for PHY/VLAN
	Role    string
}

// PortRegistry exposes the switch's full port map, the way the port
// collaborator does (spec.md §6): every ACL bind-point computation
// walks it fresh, there is no cached subset.
type PortRegistry interface {
	AllPorts() map[string]PortInfo
}

// NeighborResolver is the neighbor-resolution collaborator: IsResolved
// and Resolve operate on an (ip, alias) pair exactly as the next-hop
// types use them; AliasOf looks up the interface alias owning ip.
type NeighborResolver interface {
	AliasOf(ip net.IP) (alias string, ok bool)
	IsResolved(ip net.IP, alias string) bool
	Resolve(ip net.IP, alias string)
}

// VNETResolver is the VNET/tunnel collaborator.
type VNETResolver interface {
	VNIOf(vnet string) (vni uint64, ok bool)
	TunnelOf(vnet string) (tunnel string, ok bool)
}

// VIPProvider resolves the system virtual IP that ACL rules match
// against. It is read lazily and cached for the process lifetime,
// matching the original's one-shot inference off the VIP table.
type VIPProvider interface {
	VIP() (net.IP, error)
}

// Context bundles every external collaborator the ENI orchestrator
// needs, plus the ACL-table refcounting state that is strictly local
// to this daemon (spec.md §5). ENIs and rules hold a read-only
// reference to one shared Context; the Context never holds a
// reference back to them (spec.md §9).
type Context struct {
	Neighbors NeighborResolver
	VNET      VNETResolver
	Ports     PortRegistry
	VIPSource VIPProvider
	DPUs      *dpu.Registry

	RuleTable      producer.Table
	TableTypeTable producer.Table
	TableTable     producer.Table

	logger *log.Logger

	vip       net.IP
	vipCached bool

	ruleCount int
}

// Option configures a Context.
type Option func(*Context)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// NewContext wires the collaborators into a ready-to-use Context.
func NewContext(neighbors NeighborResolver, vnet VNETResolver, ports PortRegistry, vip VIPProvider, dpus *dpu.Registry, ruleTable, tableTypeTable, tableTable producer.Table, opts ...Option) *Context {
	c := &Context{
		Neighbors:      neighbors,
		VNET:           vnet,
		Ports:          ports,
		VIPSource:      vip,
		DPUs:           dpus,
		RuleTable:      ruleTable,
		TableTypeTable: tableTypeTable,
		TableTable:     tableTable,
		logger:         log.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// VIP returns the system virtual IP, inferring it from VIPSource on
// first use and caching the result thereafter.
func (c *Context) VIP() (net.IP, error) {
	if c.vipCached {
		return c.vip, nil
	}
	ip, err := c.VIPSource.VIP()
	if err != nil {
		return nil, err
	}
	c.vip = ip
	c.vipCached = true
	return ip, nil
}

// ACL table field names and the single rows this orchestrator owns.
const (
	TableTypeKey = "ENI_REDIRECT"
	TableKey     = "ENI"

	matchDstIP       = "DST_IP"
	matchInnerDstMAC = "INNER_DST_MAC"
	matchTunnelTerm  = "TUNNEL_TERM"
	actionRedirect   = "REDIRECT_ACTION"
	bindPointPort    = "PORT"
	bindPointPortCh  = "PORTCHANNEL"
	stageIngress     = "ingress"
)

// createAclRule writes rule's row, creating the shared ACL-table-type
// and ACL-table rows first if this is the first rule installed
// (spec.md §4.6 ACL-table lifecycle).
func (c *Context) createAclRule(key string, fields map[string]string) error {
	if c.ruleCount == 0 {
		if err := c.addAclTable(); err != nil {
			return err
		}
	}
	c.ruleCount++
	return c.RuleTable.Set(key, fields)
}

// deleteAclRule removes rule's row, tearing down the shared
// ACL-table-type and ACL-table rows if this was the last rule.
func (c *Context) deleteAclRule(key string) error {
	if err := c.RuleTable.Del(key); err != nil {
		return err
	}
	if c.ruleCount == 0 {
		c.logger.Printf("dashorch: delete acl rule %s but rule count is already 0", key)
		return nil
	}
	c.ruleCount--
	if c.ruleCount == 0 {
		return c.deleteAclTable()
	}
	return nil
}

func (c *Context) addAclTable() error {
	matches := strings.Join([]string{matchDstIP, matchInnerDstMAC, matchTunnelTerm}, ",")
	bindPointTypes := strings.Join([]string{bindPointPort, bindPointPortCh}, ",")

	if err := c.TableTypeTable.Set(TableTypeKey, map[string]string{
		"matches":          matches,
		"actions":          actionRedirect,
		"bind_point_types": bindPointTypes,
	}); err != nil {
		return err
	}

	ports := c.bindPoints()
	return c.TableTable.Set(TableKey, map[string]string{
		"description": "Contains Rule for DASH ENI Based Forwarding",
		"type":        TableTypeKey,
		"stage":       stageIngress,
		"ports":       strings.Join(ports, ","),
	})
}

func (c *Context) deleteAclTable() error {
	if err := c.TableTable.Del(TableKey); err != nil {
		return err
	}
	return c.TableTypeTable.Del(TableTypeKey)
}

// bindPoints computes the external-facing ACL bind-point set: all PHY
// and LAG ports, minus LAG members, minus internal (DPC-role) ports.
func (c *Context) bindPoints() []string {
	all := c.Ports.AllPorts()

	legit := make(map[string]struct{})
	for name, info := range all {
		if info.Type == PortPHY || info.Type == PortLAG {
			legit[name] = struct{}{}
		}
	}
	for _, info := range all {
		if info.Type != PortLAG {
			continue
		}
		for _, member := range info.Members {
			delete(legit, member)
		}
	}

	points := make([]string, 0, len(legit))
	for name := range legit {
		if all[name].Role == PortRoleDPC {
			continue
		}
		points = append(points, name)
	}
	return points
}
