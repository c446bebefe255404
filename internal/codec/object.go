package codec

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dobj/internal/dobj"
)

// Snapshot is the wire form of a whole object: its class, oid and the JSON
// encoding of every attribute.
type Snapshot struct {
	Class string                     `json:"class"`
	Oid   int                        `json:"oid"`
	Attrs map[string]json.RawMessage `json:"attrs"`
}

// EncodeObject captures the current attribute values of obj.
func EncodeObject(obj dobj.DObject) (Snapshot, error) {
	base := obj.Base()
	snap := Snapshot{
		Class: base.ClassName(),
		Oid:   base.Oid(),
		Attrs: make(map[string]json.RawMessage),
	}
	for _, name := range base.AttributeNames() {
		data, err := json.Marshal(base.Attribute(name))
		if err != nil {
			return Snapshot{}, fmt.Errorf("encode %s.%s: %w", snap.Class, name, err)
		}
		snap.Attrs[name] = data
	}
	return snap, nil
}

// DecodeObject initializes obj from snap. Attributes absent from snap keep
// their current values; attributes obj does not declare are an error.
func DecodeObject(obj dobj.DObject, snap Snapshot) error {
	base := obj.Base()
	if snap.Class != "" && snap.Class != base.ClassName() {
		return fmt.Errorf("snapshot of %s cannot initialize %s", snap.Class, base.ClassName())
	}
	base.SetOid(snap.Oid)
	for name, data := range snap.Attrs {
		acc, ok := base.Accessor(name)
		if !ok {
			return &dobj.StructuralError{
				Code:    dobj.ErrCodeUnknownAttribute,
				Message: "snapshot carries an undeclared attribute",
				Oid:     snap.Oid,
				Field:   name,
			}
		}
		var (
			v   any
			err error
		)
		if acc.Decode != nil {
			v, err = acc.Decode(data)
		} else {
			v, err = DecodeValue(data)
		}
		if err != nil {
			return fmt.Errorf("decode %s.%s: %w", snap.Class, name, err)
		}
		if err := base.SetAttribute(name, v); err != nil {
			return err
		}
	}
	return nil
}

// ObjectDigest encodes obj and returns its digest.
func ObjectDigest(obj dobj.DObject) (string, error) {
	snap, err := EncodeObject(obj)
	if err != nil {
		return "", err
	}
	return Digest(snap)
}
