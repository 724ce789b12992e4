package httpx

import (
	"net/url"
	"strings"
)

// Field is one name/value pair of an urlencoded form.
type Field struct {
	Name  string
	Value string
}

// Form is an ordered list of fields. Unlike url.Values it keeps insertion
// order and duplicate names, which the legacy portals are sensitive to.
type Form []Field

// Add appends a field.
func (f *Form) Add(name, value string) {
	*f = append(*f, Field{Name: name, Value: value})
}

// Set replaces the value of the first field called name, or appends it.
func (f *Form) Set(name, value string) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	f.Add(name, value)
}

// Get returns the value of the first field called name.
func (f Form) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Encode serializes the form as application/x-www-form-urlencoded in order.
func (f Form) Encode() string {
	var b strings.Builder
	for i, field := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(field.Value))
	}
	return b.String()
}

// Names lists field names in order. Values are left out so the result is
// safe to log.
func (f Form) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}
