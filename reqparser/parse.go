package reqparser

import (
	"net"
	"strconv"
	"strings"
)

// emptyFieldNames are field names that are skipped during attribute
// parsing: the transport requires at least one field on SET, so a
// request with nothing to say still has to carry a placeholder.
var emptyFieldNames = map[string]struct{}{
	"empty": {},
	"NULL":  {},
}

// Parse validates a single (key, op, fields) change tuple against
// schema and keySep, and returns the resulting typed Request.
//
// Key parsing splits fullKey on keySep. If keySep is ':' and the split
// produced more items than schema expects, and the last schema key
// item type is an IP, IP prefix, or MAC, the trailing excess items are
// rejoined with ':' before type-checking — this recovers an IPv6
// address or MAC that the ':' split fragmented. Any other key
// cardinality mismatch is a fatal parse error.
func Parse(schema Schema, keySep byte, op Op, fullKey string, fields map[string]string) (*Request, error) {
	if op != OpSet && op != OpDel {
		return nil, invalidArgf("wrong operation: %q", op)
	}

	keyItems := splitKey(fullKey, keySep)
	keyItems = repairIPv6OrMAC(schema, keySep, keyItems)

	if len(keyItems) != len(schema.KeyItemTypes) {
		return nil, invalidArgf(
			"wrong number of key items. expected %d item(s). key: %q",
			len(schema.KeyItemTypes), fullKey,
		)
	}

	req := newRequest(op, fullKey)

	for i, t := range schema.KeyItemTypes {
		if err := parseKeyItem(req, i, t, keyItems[i]); err != nil {
			return nil, err
		}
	}

	if err := parseAttrs(req, schema, op, fields); err != nil {
		return nil, err
	}

	return req, nil
}

func splitKey(fullKey string, sep byte) []string {
	return strings.Split(fullKey, string(sep))
}

// repairIPv6OrMAC undoes the over-splitting of a ':'-separated IPv6
// address or MAC embedded as the last key item, when the schema's last
// key item type is IP, IP prefix, or MAC. Preserve exactly: this rule
// exists solely to disambiguate ':' as both a key separator and part of
// the address/MAC syntax.
func repairIPv6OrMAC(schema Schema, sep byte, keyItems []string) []string {
	if sep != ':' {
		return keyItems
	}
	n := len(schema.KeyItemTypes)
	if len(keyItems) <= n || n == 0 {
		return keyItems
	}

	last := schema.KeyItemTypes[n-1]
	if last != TypeIP && last != TypeIPPrefix && last != TypeMAC {
		return keyItems
	}

	repaired := make([]string, n)
	copy(repaired, keyItems[:n-1])
	repaired[n-1] = strings.Join(keyItems[n-1:], ":")
	return repaired
}

func parseKeyItem(req *Request, i int, t FieldType, s string) error {
	switch t {
	case TypeString:
		req.keyStrings[i] = s
	case TypeMAC:
		mac, err := parseMAC(s)
		if err != nil {
			return err
		}
		req.keyMACs[i] = mac
	case TypeIP:
		ip, err := parseIP(s)
		if err != nil {
			return err
		}
		req.keyIPs[i] = ip
	case TypeIPPrefix:
		pfx, err := parseIPPrefix(s)
		if err != nil {
			return err
		}
		req.keyIPPrefix[i] = pfx
	case TypeUint:
		u, err := parseUint(s)
		if err != nil {
			return err
		}
		req.keyUints[i] = u
	default:
		return logicErrf("not implemented key type parser. key item: %q", s)
	}
	return nil
}

func parseAttrs(req *Request, schema Schema, op Op, fields map[string]string) error {
	for name, value := range fields {
		if _, skip := emptyFieldNames[name]; skip {
			continue
		}

		t, ok := schema.AttrTypes[name]
		if !ok {
			return invalidArgf("unknown attribute name: %s", name)
		}

		req.attrNames[name] = struct{}{}

		if err := parseAttrValue(req, name, t, value); err != nil {
			return err
		}
	}

	if op == OpDel && len(req.attrNames) > 0 {
		return invalidArgf("delete operation request contains attributes")
	}

	if op == OpSet {
		for _, name := range schema.Mandatory {
			if !req.HasAttr(name) {
				return invalidArgf("mandatory attribute %q not found", name)
			}
		}
	}

	return nil
}

func parseAttrValue(req *Request, name string, t FieldType, value string) error {
	switch t {
	case TypeString:
		req.attrStrings[name] = value
	case TypeBool:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		req.attrBools[name] = b
	case TypeMAC:
		mac, err := parseMAC(value)
		if err != nil {
			return err
		}
		req.attrMACs[name] = mac
	case TypeIP:
		ip, err := parseIP(value)
		if err != nil {
			return err
		}
		req.attrIPs[name] = ip
	case TypeIPPrefix:
		pfx, err := parseIPPrefix(value)
		if err != nil {
			return err
		}
		req.attrIPPrefix[name] = pfx
	case TypeUint:
		u, err := parseUint(value)
		if err != nil {
			return err
		}
		req.attrUints[name] = u
	case TypeVlan:
		v, err := parseVlan(value)
		if err != nil {
			return err
		}
		req.attrVlans[name] = v
	case TypePacketAction:
		a, err := parsePacketAction(value)
		if err != nil {
			return err
		}
		req.attrActions[name] = a
	case TypeStringSet:
		req.attrSets[name] = parseStringSet(value)
	case TypeStringList:
		req.attrStringLists[name] = splitList(value)
	case TypeBoolList:
		list, err := mapList(splitList(value), parseBool)
		if err != nil {
			return err
		}
		req.attrBoolLists[name] = list
	case TypeMACList:
		list, err := mapList(splitList(value), parseMAC)
		if err != nil {
			return err
		}
		req.attrMACLists[name] = list
	case TypeIPList:
		list, err := mapList(splitList(value), parseIP)
		if err != nil {
			return err
		}
		req.attrIPLists[name] = list
	case TypeUintList:
		list, err := mapList(splitList(value), parseUint)
		if err != nil {
			return err
		}
		req.attrUintLists[name] = list
	default:
		return logicErrf("not implemented attribute type parser for attribute: %s", name)
	}
	return nil
}

func splitList(value string) []string {
	return strings.Split(value, ",")
}

func mapList[T any](parts []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(parts))
	for _, p := range parts {
		v, err := parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, invalidArgf("can't parse boolean value %q", s)
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, invalidArgf("invalid mac address: %s", s)
	}
	return mac, nil
}

func parseIP(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, invalidArgf("invalid ip address: %s", s)
	}
	return ip, nil
}

func parseIPPrefix(s string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, invalidArgf("invalid ip prefix: %s", s)
	}
	return ipNet, nil
}

func parseUint(s string) (uint64, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, invalidArgf("out of range unsigned integer: %s", s)
		}
		return 0, invalidArgf("invalid unsigned integer: %s", s)
	}
	return u, nil
}

const vlanPrefix = "Vlan"

func parseVlan(s string) (Vlan, error) {
	if !strings.HasPrefix(s, vlanPrefix) {
		return 0, invalidArgf("invalid vlan interface: %s", s)
	}

	n, err := strconv.ParseUint(s[len(vlanPrefix):], 10, 32)
	if err != nil {
		return 0, invalidArgf("invalid vlan id: %s", s)
	}
	if n == 0 || n > 4094 {
		return 0, invalidArgf("out of range vlan id: %s", s)
	}

	return Vlan(n), nil
}

func parsePacketAction(s string) (PacketAction, error) {
	a, ok := packetActions[s]
	if !ok {
		return "", invalidArgf("wrong packet action attribute value %q", s)
	}
	return a, nil
}

func parseStringSet(value string) StringSet {
	set := make(StringSet)
	for _, s := range strings.Split(value, ",") {
		set[s] = struct{}{}
	}
	return set
}
