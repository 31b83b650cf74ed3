// Package header implements the Header Table: an ordered,
// case-insensitive multimap of header name to value, with RFC 7230
// multi-value folding.
package header

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/nodestream-io/httpcore/pkg/errors"
)

// Header is one name/value entry. Order of insertion is preserved for
// emission.
type Header struct {
	Name  string
	Value string
}

// Table is an ordered sequence of Headers with set/append/find/iterate.
// At most one entry exists per case-folded name after any Set. Table is
// not safe for concurrent use; it is owned exclusively by
// whichever Connection or Message holds it while an exchange is in
// flight.
type Table struct {
	entries []Header
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Set overwrites the value of any existing case-insensitive match for
// name, or appends a new entry if none exists. The stored name is the
// one of the first entry ever set for this key — Set never renames an
// existing entry.
func (t *Table) Set(name, value string) error {
	if err := validate("header.set", name, value); err != nil {
		return err
	}
	if i := t.indexOf(name); i >= 0 {
		t.entries[i].Value = value
		return nil
	}
	t.entries = append(t.entries, Header{Name: name, Value: value})
	return nil
}

// Append folds value into any existing case-insensitive match for name
// by joining with ", " (RFC 7230 §3.2.2 multi-value folding), or inserts
// a new entry if none exists.
func (t *Table) Append(name, value string) error {
	if err := validate("header.append", name, value); err != nil {
		return err
	}
	if i := t.indexOf(name); i >= 0 {
		t.entries[i].Value = t.entries[i].Value + ", " + value
		return nil
	}
	t.entries = append(t.entries, Header{Name: name, Value: value})
	return nil
}

// Find returns the value of the first case-insensitive match for name.
func (t *Table) Find(name string) (string, bool) {
	if i := t.indexOf(name); i >= 0 {
		return t.entries[i].Value, true
	}
	return "", false
}

// Iter returns the entries in insertion order. The returned slice is a
// copy; mutating it does not affect the Table.
func (t *Table) Iter() []Header {
	out := make([]Header, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of distinct entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clear releases all entries.
func (t *Table) Clear() {
	t.entries = nil
}

func (t *Table) indexOf(name string) int {
	for i := range t.entries {
		if strings.EqualFold(t.entries[i].Name, name) {
			return i
		}
	}
	return -1
}

func validate(op, name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return errors.NewValidationError(op, "invalid header field name: "+name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errors.NewValidationError(op, "invalid header field value for "+name)
	}
	return nil
}
