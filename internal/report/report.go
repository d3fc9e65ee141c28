// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"sort"
	"strconv"
	"strings"
)

// Record accumulates the named numeric fields of one reporting cycle under a
// fixed measurement name. Fields only grow between BeginCycle calls; the next
// BeginCycle discards them all.
type Record struct {
	measurement string
	fields      map[string]float64
}

// New creates an empty record for the given measurement name.
func New(measurement string) *Record {
	return &Record{
		measurement: measurement,
		fields:      make(map[string]float64),
	}
}

// Measurement returns the fixed measurement name.
func (r *Record) Measurement() string {
	return r.measurement
}

// BeginCycle drops every field from the previous cycle.
func (r *Record) BeginCycle() {
	r.fields = make(map[string]float64)
}

// AddField inserts or overwrites a named field for the current cycle.
func (r *Record) AddField(name string, value float64) {
	r.fields[name] = value
}

// Fields returns a copy of the current cycle's fields.
func (r *Record) Fields() map[string]float64 {
	out := make(map[string]float64, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Len reports how many fields the current cycle holds.
func (r *Record) Len() int {
	return len(r.fields)
}

// Serialize renders the record as a single diagnostic line:
// "<measurement> k=v,k=v" with field names sorted for stable output. The wire
// encoding sent to the database is the upload gateway's concern, not this one.
func (r *Record) Serialize() string {
	if len(r.fields) == 0 {
		return r.measurement
	}

	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(r.measurement)
	b.WriteByte(' ')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(r.fields[name], 'f', -1, 64))
	}
	return b.String()
}
