package combo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r2-control/droidctl/internal/config"
)

func TestBitmask(t *testing.T) {
	cases := []struct {
		states []bool
		want   string
	}{
		{nil, ""},
		{[]bool{false}, "0"},
		{[]bool{true, false, true}, "101"},
		{[]bool{false, false, false, false, true, true, true, true, false, false, false, false, false, false, false, false, true}, "00001111000000001"},
	}
	for _, tc := range cases {
		if got := Bitmask(tc.states); got != tc.want {
			t.Errorf("Bitmask(%v) = %q, want %q", tc.states, got, tc.want)
		}
	}
}

func TestParse_Rows(t *testing.T) {
	src := `# bitmask,press,release
001,audio/Happy001,
010, servo/body/ARM/1/0 , servo/body/ARM/0/0
001,audio/Ignored,audio/Ignored
`
	table, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	a, ok := table.Resolve("001")
	if !ok || a.Press != "audio/Happy001" || a.Release != "" {
		t.Errorf("Resolve(001) = %+v, %v", a, ok)
	}
	a, ok = table.Resolve("010")
	if !ok || a.Press != "servo/body/ARM/1/0" || a.Release != "servo/body/ARM/0/0" {
		t.Errorf("Resolve(010) = %+v, %v", a, ok)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"too_few_fields": "001,audio/x\n",
		"bad_bitmask":    "0a1,audio/x,\n",
		"empty_bitmask":  ",audio/x,\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(src)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestResolve_MissIsSilent(t *testing.T) {
	table, err := Parse(strings.NewReader("001,audio/x,\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a, ok := table.Resolve("111"); ok || a != (Action{}) {
		t.Errorf("Resolve(111) = %+v, %v, want miss", a, ok)
	}
}

func TestDefaultTable_Parses(t *testing.T) {
	table, err := Parse(strings.NewReader(string(DefaultTable())))
	if err != nil {
		t.Fatalf("bundled table: %v", err)
	}
	if table.Len() == 0 {
		t.Error("bundled table is empty")
	}
	for _, reserved := range []string{"00001111000000001", "00001111000000010"} {
		if _, ok := table.Resolve(reserved); ok {
			t.Errorf("bundled table binds reserved gesture %s", reserved)
		}
	}
}

func TestLoadFile_SeedsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "ps3_keys.csv")
	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("seeded file missing: %v", err)
	}
	if string(data) != string(DefaultTable()) {
		t.Error("seeded file differs from bundled default")
	}
	if table.Len() == 0 {
		t.Error("table is empty")
	}
}

func TestLoadFile_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ps3_keys.csv")
	if err := os.WriteFile(path, []byte("1,audio/only,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestGestures_Classify(t *testing.T) {
	g := GesturesFromConfig(config.Default().Gestures)
	cases := []struct {
		name     string
		mask     string
		stateful bool
		want     Gesture
	}{
		{"speed_up", "00001111000000001", false, GestureSpeedUp},
		{"speed_down", "00001111000000010", true, GestureSpeedDown},
		{"disable_odrive", "00000000000100000", true, GestureDriveDisable},
		{"enable_odrive", "00000000010000000", true, GestureDriveEnable},
		{"disable_sabertooth", "00000000000100000", false, GestureNone},
		{"enable_sabertooth", "00000000010000000", false, GestureNone},
		{"ordinary", "00000000000000001", true, GestureNone},
		{"empty", "", true, GestureNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.Classify(tc.mask, tc.stateful); got != tc.want {
				t.Errorf("Classify(%q, %v) = %v, want %v", tc.mask, tc.stateful, got, tc.want)
			}
		})
	}
}

func TestGestures_DisabledWhenEmpty(t *testing.T) {
	var g Gestures
	if got := g.Classify("0101", true); got != GestureNone {
		t.Errorf("Classify on empty gestures = %v, want none", got)
	}
}
