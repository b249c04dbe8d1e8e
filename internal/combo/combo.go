// Package combo resolves joystick button snapshots into remote actions.
//
// A combo is the concatenation of every button's state ("0"/"1") in a
// fixed order. The table maps a combo to a press action and a release
// action, both path suffixes for the notification service.
package combo

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/r2-control/droidctl/internal/debug"
)

//go:embed keys-default.csv
var defaultKeys []byte

// DefaultTable returns the bundled combo table source.
func DefaultTable() []byte {
	return append([]byte(nil), defaultKeys...)
}

// Action is the pair of requests bound to a combo. Empty means no request.
type Action struct {
	Press   string
	Release string
}

// Table is an immutable combo lookup.
type Table struct {
	actions map[string]Action
}

// Bitmask renders button states in index order.
func Bitmask(states []bool) string {
	var sb strings.Builder
	sb.Grow(len(states))
	for _, down := range states {
		if down {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Parse reads "bitmask,press,release" rows. Lines starting with # are
// comments. The first row for a bitmask wins.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	t := &Table{actions: make(map[string]Action)}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse combo table: %w", err)
		}
		mask := strings.TrimSpace(row[0])
		if !isBitmask(mask) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("parse combo table: line %d: invalid bitmask %q", line, mask)
		}
		if _, dup := t.actions[mask]; dup {
			debug.Verbose("Combo %s defined twice, keeping first", mask)
			continue
		}
		t.actions[mask] = Action{
			Press:   strings.TrimSpace(row[1]),
			Release: strings.TrimSpace(row[2]),
		}
		debug.Trace("Row: %s | %s | %s", mask, row[1], row[2])
	}
	return t, nil
}

// LoadFile reads the table at path. When the file does not exist it is
// first seeded from the bundled default.
func LoadFile(path string) (*Table, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		debug.Info("No combo table at %s, copying bundled default", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create combo table dir: %w", err)
		}
		if err := os.WriteFile(path, defaultKeys, 0o644); err != nil {
			return nil, fmt.Errorf("seed combo table: %w", err)
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open combo table: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Resolve looks up the exact bitmask. A miss is not an error.
func (t *Table) Resolve(bitmask string) (Action, bool) {
	a, ok := t.actions[bitmask]
	return a, ok
}

// Len returns the number of combos.
func (t *Table) Len() int {
	return len(t.actions)
}

func isBitmask(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '0' && r != '1' {
			return false
		}
	}
	return true
}
