// schema.go implements the schema-driven record reader spec.md §4.A and §6
// describe: the network description file is a text, self-describing
// record stream where each record names a struct and emits its fields by
// name. Unknown fields are tolerated (ignored); missing fields fall back
// to the `default:` struct-tag value. The schema itself — field name and
// semantic type — is derived once per struct type via reflection, mirroring
// spec.md §6's requirement that "equivalent implementations must generate
// the same schema names to stay file-compatible" without committing to any
// particular byte layout (the format is text).
package netdesc

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/uflsim/engine/internal/engerr"
)

// fieldSpec is one entry of a struct's derived schema: name, semantic
// type, default, enum names, and the struct field index used to populate it.
type fieldSpec struct {
	name       string
	semantic   string // "int", "float", "bool", "string", "enum"
	defaultVal string
	enumNames  []string
	index      int
}

// schemaOf derives the field table for typ, keyed by the `field:` tag;
// exported fields without that tag are left out of the table. An "enum"
// semantic additionally carries an ordered `enum:"a,b,c"` name list so a
// text value like "burster" maps onto the Go iota-based constant at its
// position in the list.
func schemaOf(typ reflect.Type) []fieldSpec {
	var specs []fieldSpec
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup("field")
		if !ok {
			continue // fields without an explicit schema tag are runtime-only
		}
		spec := fieldSpec{
			name:       tag,
			semantic:   f.Tag.Get("type"),
			defaultVal: f.Tag.Get("default"),
			index:      i,
		}
		if enumTag, ok := f.Tag.Lookup("enum"); ok {
			spec.enumNames = strings.Split(enumTag, ",")
		}
		specs = append(specs, spec)
	}
	return specs
}

// ApplyDefaults sets every schema-tagged field of dst (a pointer to
// struct) to its `default:` tag value, for fields that are still at their
// Go zero value. Called before any record is read, so that missing fields
// in the input are tolerated per spec.md §4.A.
func ApplyDefaults(dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return engerr.Config("netdesc.ApplyDefaults", fmt.Errorf("dst must be a pointer to struct"))
	}
	elem := v.Elem()
	for _, fs := range schemaOf(elem.Type()) {
		if fs.defaultVal == "" {
			continue
		}
		fv := elem.Field(fs.index)
		if !fv.IsZero() {
			continue
		}
		if err := setField(fv, fs.semantic, fs.defaultVal, fs.enumNames); err != nil {
			return engerr.Config("netdesc.ApplyDefaults", err)
		}
	}
	return nil
}

// Record is one parsed "field=value" pair from a record-stream line, e.g.
// "dt=0.5" or "subtype=burster".
type Record struct {
	Field string
	Value string
}

// ParseRecordLine splits one "field=value" line. Blank lines and lines
// starting with '#' are comments/separators and return ok=false.
func ParseRecordLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Record{}, false
	}
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return Record{}, false
	}
	return Record{
		Field: strings.TrimSpace(line[:idx]),
		Value: strings.TrimSpace(line[idx+1:]),
	}, true
}

// ApplyRecord sets the schema field named rec.Field on dst (pointer to
// struct) to rec.Value. Unknown field names are silently ignored (spec.md
// §4.A: "tolerates unknown fields"), since the schema may have grown in a
// newer writer than this reader understands.
func ApplyRecord(dst any, rec Record) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return engerr.Config("netdesc.ApplyRecord", fmt.Errorf("dst must be a pointer to struct"))
	}
	elem := v.Elem()
	for _, fs := range schemaOf(elem.Type()) {
		if fs.name != rec.Field {
			continue
		}
		return setField(elem.Field(fs.index), fs.semantic, rec.Value, fs.enumNames)
	}
	return nil // unknown field: tolerated
}

func setField(fv reflect.Value, semantic, raw string, enumNames []string) error {
	switch semantic {
	case "int":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("field %s: not an int: %q", fv.Type(), raw)
		}
		fv.SetInt(n)
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("field %s: not a float: %q", fv.Type(), raw)
		}
		fv.SetFloat(f)
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("field %s: not a bool: %q", fv.Type(), raw)
		}
		fv.SetBool(b)
	case "enum":
		for i, name := range enumNames {
			if strings.TrimSpace(name) == raw {
				fv.SetInt(int64(i))
				return nil
			}
		}
		return fmt.Errorf("field %s: unrecognized enum value %q (want one of %v)", fv.Type(), raw, enumNames)
	default: // string, including pointer-to-string semantics
		fv.SetString(raw)
	}
	return nil
}

// ReadRecordBlock reads lines from r until a blank line or EOF, applying
// each recognized "field=value" line to dst via ApplyRecord. This is the
// per-struct record unit of the description file's record stream.
func ReadRecordBlock(r *bufio.Reader, dst any) error {
	if err := ApplyDefaults(dst); err != nil {
		return err
	}
	for {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err == io.EOF {
				return nil
			}
			if len(strings.TrimRight(line, "\r\n")) == 0 {
				return nil
			}
		}
		if rec, ok := ParseRecordLine(line); ok {
			if aerr := ApplyRecord(dst, rec); aerr != nil {
				return engerr.Config("netdesc.ReadRecordBlock", aerr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return engerr.Config("netdesc.ReadRecordBlock", err)
		}
	}
}
