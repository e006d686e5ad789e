// Package reqparser validates a (key, op, fields) change tuple against a
// declarative schema and produces a typed, read-only Request.
package reqparser

// net.HardwareAddr and net.IP / *net.IPNet are reused directly as the
// MAC, IP and IP-prefix representations; no wrapper type is introduced,
// matching the teacher's own use of net.ParseMAC/net.ParseIP for the
// same concepts (ovs/matchparser.go).

// A FieldType identifies the scalar or list type of a key item or
// attribute value recognized by a Schema.
type FieldType int

// FieldType constants. List variants hold comma-separated values of the
// corresponding scalar type.
const (
	TypeString FieldType = iota
	TypeBool
	TypeMAC
	TypeIP
	TypeIPPrefix
	TypeUint
	TypeVlan
	TypePacketAction
	TypeStringSet
	TypeStringList
	TypeBoolList
	TypeMACList
	TypeIPList
	TypeUintList
)

// A PacketAction is one of the closed vocabulary of dataplane packet
// actions recognized in attribute values.
type PacketAction string

// PacketAction constants.
const (
	ActionDrop       PacketAction = "drop"
	ActionForward    PacketAction = "forward"
	ActionCopy       PacketAction = "copy"
	ActionCopyCancel PacketAction = "copy_cancel"
	ActionTrap       PacketAction = "trap"
	ActionLog        PacketAction = "log"
	ActionDeny       PacketAction = "deny"
	ActionTransit    PacketAction = "transit"
)

var packetActions = map[string]PacketAction{
	"drop":        ActionDrop,
	"forward":     ActionForward,
	"copy":        ActionCopy,
	"copy_cancel": ActionCopyCancel,
	"trap":        ActionTrap,
	"log":         ActionLog,
	"deny":        ActionDeny,
	"transit":     ActionTransit,
}

// A Vlan is a VLAN id parsed from the "Vlan<n>" textual form, 1..4094
// inclusive.
type Vlan int

// A StringSet is an unordered set of strings parsed from a
// comma-separated attribute value.
type StringSet map[string]struct{}

// Contains reports whether s is a member of the set.
func (ss StringSet) Contains(s string) bool {
	_, ok := ss[s]
	return ok
}

// Op is the operation carried by a change tuple.
type Op string

// Op constants, matching the two operations the transport ever delivers.
const (
	OpSet Op = "SET"
	OpDel Op = "DEL"
)

// A Schema declares the shape of one table's key and attributes.
type Schema struct {
	// KeyItemTypes lists the type of each ':'- or '|'-separated key item,
	// in order.
	KeyItemTypes []FieldType

	// AttrTypes maps an attribute (field) name to its declared type.
	AttrTypes map[string]FieldType

	// Mandatory lists attribute names that must be present on SET.
	Mandatory []string
}
