package reqparser

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseVlan(t *testing.T) {
	var tests = []struct {
		s       string
		want    Vlan
		invalid bool
	}{
		{s: "Vlan1", want: 1},
		{s: "Vlan100", want: 100},
		{s: "Vlan4094", want: 4094},
		{s: "Vlan0", invalid: true},
		{s: "Vlan4095", invalid: true},
		{s: "vlan1", invalid: true},
		{s: "Vlanxyz", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got, err := parseVlan(tt.s)
			if tt.invalid {
				if err == nil {
					t.Fatalf("expected error for %q", tt.s)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseVlan(%q) = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestParsePacketAction(t *testing.T) {
	var tests = []struct {
		s       string
		want    PacketAction
		invalid bool
	}{
		{s: "drop", want: ActionDrop},
		{s: "forward", want: ActionForward},
		{s: "copy_cancel", want: ActionCopyCancel},
		{s: "transit", want: ActionTransit},
		{s: "bogus", invalid: true},
	}

	for _, tt := range tests {
		got, err := parsePacketAction(tt.s)
		if tt.invalid {
			if err == nil {
				t.Fatalf("expected error for %q", tt.s)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("parsePacketAction(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func portTableSchema() Schema {
	return Schema{
		KeyItemTypes: []FieldType{TypeString},
		AttrTypes: map[string]FieldType{
			"speed": TypeUint,
		},
	}
}

func TestParseKeyRepairIPv6(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString, TypeIP},
		AttrTypes:    map[string]FieldType{},
	}

	req, err := Parse(schema, ':', OpSet, "neigh:fe80::1:2:3:4", map[string]string{"empty": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := req.KeyString(0), "neigh"; got != want {
		t.Fatalf("key item 0 = %q, want %q", got, want)
	}

	want := net.ParseIP("fe80::1:2:3:4")
	if !req.KeyIP(1).Equal(want) {
		t.Fatalf("key item 1 = %v, want %v", req.KeyIP(1), want)
	}
}

func TestParseKeyRepairMAC(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString, TypeMAC},
	}

	req, err := Parse(schema, ':', OpSet, "iface0:de:ad:be:ef:de:ad", map[string]string{"empty": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want, _ := net.ParseMAC("de:ad:be:ef:de:ad")
	if diff := cmp.Diff(want, req.KeyMAC(1)); diff != "" {
		t.Fatalf("key MAC mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKeyRepairOnlyAppliesToColonSeparator(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString, TypeIP},
	}

	// '|' separator: the IPv6 address contains no '|', so the key splits
	// into exactly the two expected items and needs no repair.
	_, err := Parse(schema, '|', OpSet, "iface0|fe80::1:2:3:4", map[string]string{"empty": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// '|' separator with excess items: no repair rule, so the cardinality
	// mismatch is fatal even though rejoining "fe80:" and "1" with ':'
	// would have produced a valid IPv6 address.
	_, err = Parse(schema, '|', OpSet, "iface0|fe80:|1", map[string]string{"empty": ""})
	if err == nil {
		t.Fatal("expected error: key repair must not apply to a '|' separator")
	}
}

func TestParseKeyCardinalityMismatch(t *testing.T) {
	schema := portTableSchema()

	_, err := Parse(schema, '|', OpSet, "Ethernet0|extra", map[string]string{"speed": "100000"})
	if err == nil {
		t.Fatal("expected error for wrong key cardinality")
	}
}

func TestParseSetRequiresMandatoryAttrs(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString},
		AttrTypes:    map[string]FieldType{"a": TypeString, "b": TypeString},
		Mandatory:    []string{"a", "b"},
	}

	_, err := Parse(schema, '|', OpSet, "key0", map[string]string{"a": "1"})
	if err == nil {
		t.Fatal("expected error for missing mandatory attribute")
	}

	req, err := Parse(schema, '|', OpSet, "key0", map[string]string{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.AttrString("a") != "1" || req.AttrString("b") != "2" {
		t.Fatalf("unexpected attrs: a=%q b=%q", req.AttrString("a"), req.AttrString("b"))
	}
}

func TestParseDelRejectsAttributes(t *testing.T) {
	schema := portTableSchema()

	_, err := Parse(schema, '|', OpDel, "Ethernet0", map[string]string{"speed": "100000"})
	if err == nil {
		t.Fatal("expected error for attributes on DEL")
	}

	_, err = Parse(schema, '|', OpDel, "Ethernet0", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseUnknownAttribute(t *testing.T) {
	schema := portTableSchema()

	_, err := Parse(schema, '|', OpSet, "Ethernet0", map[string]string{"bogus": "1"})
	if err == nil {
		t.Fatal("expected error for unknown attribute")
	}
}

func TestParseEmptyFieldSkipped(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString},
		AttrTypes:    map[string]FieldType{"a": TypeString},
	}

	req, err := Parse(schema, '|', OpSet, "key0", map[string]string{"empty": "", "NULL": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.HasAttr("empty") || req.HasAttr("NULL") {
		t.Fatal("expected empty/NULL fields to be skipped")
	}
}

func TestParseLists(t *testing.T) {
	schema := Schema{
		KeyItemTypes: []FieldType{TypeString},
		AttrTypes: map[string]FieldType{
			"ids":   TypeStringList,
			"ports": TypeUintList,
		},
	}

	req, err := Parse(schema, '|', OpSet, "key0", map[string]string{
		"ids":   "vdpu0,vdpu1,vdpu2",
		"ports": "1,2,3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"vdpu0", "vdpu1", "vdpu2"}, req.AttrStringList("ids")); diff != "" {
		t.Fatalf("string list mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint64{1, 2, 3}, req.AttrUintList("ports")); diff != "" {
		t.Fatalf("uint list mismatch (-want +got):\n%s", diff)
	}
}
