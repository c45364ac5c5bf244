package domain

import "strings"

// Record is one parsed line of an input file: the field values keyed by
// header name, the header order (kept for exports), the 1-based line
// number, and a mutable Status that accumulates human-readable error text.
type Record struct {
	Fields map[string]string
	Header []string
	Line   int
	Status string
}

func NewRecord(header []string, values []string, line int) *Record {
	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(values) {
			fields[name] = values[i]
		} else {
			fields[name] = ""
		}
	}
	return &Record{Fields: fields, Header: header, Line: line}
}

// Get returns the value of a column, empty when the column is absent.
func (r *Record) Get(name string) string {
	return r.Fields[name]
}

// AddStatus appends an error phrase to the record status. Phrases are
// joined with " | " and each distinct phrase appears at most once.
func (r *Record) AddStatus(txt string) {
	if txt == "" {
		return
	}
	if r.Status == "" {
		r.Status = txt
		return
	}
	if !strings.Contains(r.Status, txt) {
		r.Status += " | " + txt
	}
}

// SetStatus overwrites the status, used when the submission outcome is
// mirrored onto every contributing line.
func (r *Record) SetStatus(txt string) {
	r.Status = txt
}

// Values returns the record values in header order with the current
// Status appended, ready for a csv writer row.
func (r *Record) Values() []string {
	out := make([]string, 0, len(r.Header)+1)
	for _, name := range r.Header {
		out = append(out, r.Fields[name])
	}
	out = append(out, r.Status)
	return out
}
