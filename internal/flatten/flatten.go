// Package flatten turns a nested submission into a single-level record whose
// keys are column names.
//
// Nested keys are joined with a separator ("Address -- City"). Raw field ids
// can be renamed to labels, unwanted keys skipped, and a subtree holding a
// single value hoisted directly under its parent key:
//
//	rec := flatten.Flatten(payload, flatten.Options{
//	    SkipKeys:     flatten.DefaultSkipKeys,
//	    RemapHeaders: map[string]string{"field_email": "Email"},
//	    ReduceSingle: true,
//	})
package flatten

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// DefaultSeparator joins a parent key and a child key.
const DefaultSeparator = " -- "

// DefaultSkipKeys are bookkeeping fields of a contact message that never
// belong in a delivered record.
var DefaultSkipKeys = []string{"uuid", "langcode", "contact_form", "copy"}

// Member is one key of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a mapping that keeps its keys in document order.
type Object []Member

// Options controls Flatten.
type Options struct {
	Separator    string            // default DefaultSeparator
	SkipKeys     []string          // keys dropped at every depth
	RemapHeaders map[string]string // raw key -> column name, at every depth
	ReduceSingle bool              // hoist one-value subtrees to the parent key
}

// Flatten converts v into a flat record.
//
// Object and map[string]any recurse by key (maps in sorted key order), slices
// by decimal index. Any other value becomes a single cell; a top-level scalar
// is treated as a one-element list and so lands under key "0".
func Flatten(v any, opts Options) sheet.Record {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	skip := make(map[string]bool, len(opts.SkipKeys))
	for _, k := range opts.SkipKeys {
		skip[k] = true
	}

	e := &encoder{opts: opts, skip: skip}
	if _, ok := v.(sheet.Record); !ok && !isContainer(v) {
		v = []any{v}
	}
	return e.encode(v, "")
}

type encoder struct {
	opts Options
	skip map[string]bool
}

func (e *encoder) encode(v any, prefix string) sheet.Record {
	out := sheet.Record{}
	for _, m := range members(v) {
		if e.skip[m.Key] {
			continue
		}

		key := m.Key
		if label := e.opts.RemapHeaders[m.Key]; label != "" {
			key = label
		}
		heading := key
		if prefix != "" {
			heading = prefix + e.opts.Separator + key
		}

		if !isContainer(m.Value) {
			out = out.Set(heading, scalar(m.Value))
			continue
		}

		child := e.encode(m.Value, heading)
		switch {
		case len(child) == 0:
		case e.opts.ReduceSingle && len(child) == 1:
			out = out.Set(heading, child[0].Value)
		default:
			for _, f := range child {
				out = out.Set(f.Name, f.Value)
			}
		}
	}
	return out
}

func isContainer(v any) bool {
	switch v.(type) {
	case Object, map[string]any, []any, []string, sheet.Record:
		return true
	}
	return false
}

// members lists the keys of a container in iteration order.
func members(v any) []Member {
	switch t := v.(type) {
	case Object:
		return t
	case sheet.Record:
		ms := make([]Member, len(t))
		for i, f := range t {
			ms[i] = Member{Key: f.Name, Value: f.Value}
		}
		return ms
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ms := make([]Member, len(keys))
		for i, k := range keys {
			ms[i] = Member{Key: k, Value: t[k]}
		}
		return ms
	case []any:
		ms := make([]Member, len(t))
		for i, item := range t {
			ms[i] = Member{Key: strconv.Itoa(i), Value: item}
		}
		return ms
	case []string:
		ms := make([]Member, len(t))
		for i, item := range t {
			ms[i] = Member{Key: strconv.Itoa(i), Value: item}
		}
		return ms
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
