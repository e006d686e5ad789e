// Package sflowmgr reconciles per-port sFlow sampling rate and admin
// state from four independent configuration/operational sources into
// two downstream producer tables, following the precedence and
// effective-rate rules described by the tables it consumes.
package sflowmgr

import (
	"log"

	"github.com/switchctl/switchctl/consumer"
	"github.com/switchctl/switchctl/producer"
	"github.com/switchctl/switchctl/reqparser"
)

// Schemas for the four sources this reconciler consumes. Key items and
// attributes are all plain strings; the interesting work is in how the
// values are combined, not in their wire types.
var (
	ConfiguredPortSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes:    map[string]reqparser.FieldType{"speed": reqparser.TypeString},
		Mandatory:    []string{"speed"},
	}

	OperationalPortSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes: map[string]reqparser.FieldType{
			"speed":              reqparser.TypeString,
			"netdev_oper_status": reqparser.TypeString,
		},
	}

	GlobalSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes:    map[string]reqparser.FieldType{"admin_state": reqparser.TypeString},
		Mandatory:    []string{"admin_state"},
	}

	SessionSchema = reqparser.Schema{
		KeyItemTypes: []reqparser.FieldType{reqparser.TypeString},
		AttrTypes: map[string]reqparser.FieldType{
			"admin_state": reqparser.TypeString,
			"sample_rate": reqparser.TypeString,
		},
	}
)

const sessionAllKey = "all"

// SflowPortInfo is the reconciler's per-port state: everything known
// about one port's configured speed, operational speed, and whatever
// sampling values are currently applied to it.
type SflowPortInfo struct {
	Speed         string // configured; "error" until known
	OperSpeed     string // operational; "N/A" until known or link down
	Rate          string // currently applied sample rate; empty until set
	Admin         string // currently applied admin state; empty until set
	LocalRateCfg  bool
	LocalAdminCfg bool
}

func newSflowPortInfo() *SflowPortInfo {
	return &SflowPortInfo{Speed: "error", OperSpeed: "N/A"}
}

// ServiceHook is the side effect run whenever the global admin state
// toggles. Failures are logged and otherwise ignored (spec: service
// hook failures never block reconciliation).
type ServiceHook interface {
	Start() error
	Stop() error
}

// Manager is the sFlow sampling-rate and admin-state reconciler. A
// Manager is driven entirely by its own goroutine via the four
// Handle* methods, each meant to be wired as a consumer.Buffer drain
// visitor (spec.md §4.5/§5); it keeps no internal locking.
type Manager struct {
	global  producer.Table
	session producer.Table
	hook    ServiceHook
	logger  *log.Logger

	ports       map[string]*SflowPortInfo
	emitted     map[string]consumer.Fields
	gEnable     bool
	intfAllConf bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager with apply-to-all enabled and the
// global admin disabled, matching the state of a freshly started
// reconciler before any configuration has arrived.
func NewManager(global, session producer.Table, hook ServiceHook, opts ...Option) *Manager {
	m := &Manager{
		global:      global,
		session:     session,
		hook:        hook,
		logger:      log.Default(),
		ports:       make(map[string]*SflowPortInfo),
		emitted:     make(map[string]consumer.Fields),
		intfAllConf: true,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// effectiveRate is the sampling rate to use whenever the reconciler
// has to invent a value: the operational speed if known, else the
// configured speed (which may itself be the "error" sentinel).
func effectiveRate(p *SflowPortInfo) string {
	if p.OperSpeed != "" && p.OperSpeed != "N/A" {
		return p.OperSpeed
	}
	return p.Speed
}

// desiredRow computes the row port should currently have under the
// reconciler's precedence: an explicit local override always wins;
// absent one, the computed effective rate applies only while sFlow is
// enabled both globally and for this port via apply-to-all. Global
// enable gates every row, including locally overridden ones — matching
// how disabling sFlow globally tears every session row down regardless
// of which rule had produced it.
func (m *Manager) desiredRow(p *SflowPortInfo) (consumer.Fields, bool) {
	if !m.gEnable {
		return nil, false
	}
	if p.LocalRateCfg || p.LocalAdminCfg {
		admin := p.Admin
		if admin == "" {
			admin = "up"
		}
		return consumer.Fields{"sample_rate": p.Rate, "admin_state": admin}, true
	}
	if m.intfAllConf {
		return consumer.Fields{"sample_rate": effectiveRate(p), "admin_state": "up"}, true
	}
	return nil, false
}

// applyGlobalRate asserts the unconditional global-rate row for a
// configured port whose speed just changed, ignoring any admin-state
// override in effect for it. The speed-change path only ever checks
// LocalRateCfg before calling this (a rate override must still win);
// an admin-only override does not shield a port from having its
// sample_rate reasserted when the link speed moves.
func (m *Manager) applyGlobalRate(name string, p *SflowPortInfo) {
	if !m.gEnable || !m.intfAllConf {
		return
	}
	m.set(name, consumer.Fields{"sample_rate": effectiveRate(p), "admin_state": "up"})
}

// reconcile recomputes port's desired row and writes it to the session
// table only if it differs from what was last emitted for that port —
// re-applying an unchanged toggle must not cause a downstream write.
func (m *Manager) reconcile(name string, p *SflowPortInfo) {
	want, ok := m.desiredRow(p)
	prev, hadPrev := m.emitted[name]

	if !ok {
		if hadPrev {
			m.del(name)
		}
		return
	}
	if hadPrev && fieldsEqual(prev, want) {
		return
	}
	m.set(name, want)
}

func (m *Manager) set(name string, fields consumer.Fields) {
	if err := m.session.Set(name, fields); err != nil {
		m.logger.Printf("sflowmgr: session set %s: %v", name, err)
		return
	}
	m.emitted[name] = fields
}

func (m *Manager) del(name string) {
	if err := m.session.Del(name); err != nil {
		m.logger.Printf("sflowmgr: session del %s: %v", name, err)
		return
	}
	delete(m.emitted, name)
}

func fieldsEqual(a, b consumer.Fields) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (m *Manager) reconcileAll() {
	for name, p := range m.ports {
		m.reconcile(name, p)
	}
}
