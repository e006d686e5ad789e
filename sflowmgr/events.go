package sflowmgr

import (
	"github.com/switchctl/switchctl/consumer"
	"github.com/switchctl/switchctl/reqparser"
)

// HandleConfiguredPort processes one change from the configured port
// table. A re-emission only happens for a brand-new port, or when the
// configured speed changed and no local sample-rate override is in
// effect — a port with a rate override keeps its row on speed changes,
// while an admin-only override does not shield it (see applyGlobalRate).
func (m *Manager) HandleConfiguredPort(key string, op reqparser.Op, fields map[string]string) {
	if op == reqparser.OpDel {
		delete(m.ports, key)
		if _, had := m.emitted[key]; had {
			m.del(key)
		}
		return
	}

	req, err := reqparser.Parse(ConfiguredPortSchema, ':', op, key, fields)
	if err != nil {
		m.logger.Printf("sflowmgr: configured port %s: %v", key, err)
		return
	}

	p, existed := m.ports[key]
	if !existed {
		p = newSflowPortInfo()
		m.ports[key] = p
	}

	speed := req.AttrString("speed")
	speedChanged := p.Speed != speed
	p.Speed = speed

	if !existed {
		m.reconcile(key, p)
		return
	}
	if speedChanged && !p.LocalRateCfg {
		m.applyGlobalRate(key, p)
	}
}

// HandleOperationalPort processes one change from the operational port
// table. Updates for a port the reconciler has never seen configured
// are logged and dropped — there is no configuration state to attach
// them to.
func (m *Manager) HandleOperationalPort(key string, op reqparser.Op, fields map[string]string) {
	p, ok := m.ports[key]
	if !ok {
		m.logger.Printf("sflowmgr: operational update for unknown port %s dropped", key)
		return
	}
	if op == reqparser.OpDel {
		return
	}

	req, err := reqparser.Parse(OperationalPortSchema, ':', op, key, fields)
	if err != nil {
		m.logger.Printf("sflowmgr: operational port %s: %v", key, err)
		return
	}

	operSpeed := "N/A"
	if req.HasAttr("netdev_oper_status") && req.AttrString("netdev_oper_status") == "up" && req.HasAttr("speed") {
		operSpeed = req.AttrString("speed")
	}

	if operSpeed == p.OperSpeed {
		return
	}
	p.OperSpeed = operSpeed

	if !p.LocalRateCfg && m.gEnable && m.intfAllConf {
		rate := effectiveRate(p)
		if err := m.session.Set(key, map[string]string{"sample_rate": rate}); err != nil {
			m.logger.Printf("sflowmgr: session set %s: %v", key, err)
			return
		}
		row, ok := m.emitted[key]
		if !ok {
			row = consumer.Fields{"admin_state": "up"}
		}
		row["sample_rate"] = rate
		m.emitted[key] = row
	}
}

// HandleGlobal processes one change from the global sFlow table. The
// configured admin_state is always mirrored to the global producer
// row; the session walk only runs when the admin state actually
// toggled.
func (m *Manager) HandleGlobal(key string, op reqparser.Op, fields map[string]string) {
	if op == reqparser.OpDel {
		if m.gEnable {
			m.gEnable = false
			m.runHook(false)
		}
		if err := m.global.Del(key); err != nil {
			m.logger.Printf("sflowmgr: global del: %v", err)
		}
		m.reconcileAll()
		return
	}

	req, err := reqparser.Parse(GlobalSchema, ':', op, key, fields)
	if err != nil {
		m.logger.Printf("sflowmgr: global %s: %v", key, err)
		return
	}

	if err := m.global.Set(key, map[string]string{"admin_state": req.AttrString("admin_state")}); err != nil {
		m.logger.Printf("sflowmgr: global set: %v", err)
	}

	enable := req.AttrString("admin_state") == "up"
	if enable == m.gEnable {
		return
	}
	m.gEnable = enable
	m.runHook(enable)
	m.reconcileAll()
}

func (m *Manager) runHook(enable bool) {
	var err error
	if enable {
		err = m.hook.Start()
	} else {
		err = m.hook.Stop()
	}
	if err != nil {
		m.logger.Printf("sflowmgr: service hook: %v", err)
	}
}

// HandleSession processes one change from the per-session sFlow table,
// including the special "all" key that toggles apply-to-all. It
// returns true when the change must be retained in the caller's
// consumer.Buffer for a later drain, which happens only when a
// per-port SET arrives before its port is known.
func (m *Manager) HandleSession(key string, op reqparser.Op, fields map[string]string) (retain bool) {
	if key == sessionAllKey {
		m.handleSessionAll(op, fields)
		return false
	}

	p, ok := m.ports[key]
	if op == reqparser.OpSet && !ok {
		return true
	}

	if op == reqparser.OpDel {
		if ok {
			p.LocalRateCfg = false
			p.LocalAdminCfg = false
			m.reconcile(key, p)
		}
		return false
	}

	req, err := reqparser.Parse(SessionSchema, ':', op, key, fields)
	if err != nil {
		m.logger.Printf("sflowmgr: session %s: %v", key, err)
		return false
	}

	if req.HasAttr("sample_rate") {
		p.Rate = req.AttrString("sample_rate")
		p.LocalRateCfg = true
	} else {
		if p.Rate == "" || p.LocalRateCfg {
			p.Rate = effectiveRate(p)
		}
		p.LocalRateCfg = false
	}

	if req.HasAttr("admin_state") {
		p.Admin = req.AttrString("admin_state")
		p.LocalAdminCfg = true
	} else {
		if p.Admin == "" {
			p.Admin = "up"
		}
		p.LocalAdminCfg = false
	}

	m.reconcile(key, p)
	return false
}

func (m *Manager) handleSessionAll(op reqparser.Op, fields map[string]string) {
	if op == reqparser.OpDel {
		m.intfAllConf = true
		m.reconcileAll()
		return
	}

	req, err := reqparser.Parse(SessionSchema, ':', op, sessionAllKey, fields)
	if err != nil {
		m.logger.Printf("sflowmgr: session all: %v", err)
		return
	}
	if !req.HasAttr("admin_state") {
		return
	}

	m.intfAllConf = req.AttrString("admin_state") == "up"
	m.reconcileAll()
}
