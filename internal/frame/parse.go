package frame

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrMissingRequiredAttribute is returned when a frame omits an attribute
// INDI requires (device, name, perm, ...). Per spec §4.1 this is a fatal
// parse error for that frame only; the caller should log and discard it.
var ErrMissingRequiredAttribute = errors.New("frame: missing required attribute")

// ErrUnrecognisedTag is returned by Parse when called with a tag the codec
// doesn't know how to decode.
var ErrUnrecognisedTag = errors.New("frame: unrecognised tag")

// Parse decodes a single delimited frame (as produced by Framer.Feed) into
// its typed wire struct. The returned value's concrete type depends on tag:
// tag "defTextVector" yields *DefTextVector, and so on for every tag in
// tags.go.
func Parse(raw []byte) (tag Tag, value interface{}, err error) {
	name, err := peekTagName(raw)
	if err != nil {
		return "", nil, err
	}
	tag = Tag(name)

	var dst interface{}
	switch tag {
	case TagDefTextVector:
		dst = &DefTextVector{}
	case TagDefNumberVector:
		dst = &DefNumberVector{}
	case TagDefSwitchVector:
		dst = &DefSwitchVector{}
	case TagDefLightVector:
		dst = &DefLightVector{}
	case TagDefBLOBVector:
		dst = &DefBLOBVector{}
	case TagSetTextVector:
		dst = &SetTextVector{}
	case TagSetNumberVector:
		dst = &SetNumberVector{}
	case TagSetSwitchVector:
		dst = &SetSwitchVector{}
	case TagSetLightVector:
		dst = &SetLightVector{}
	case TagSetBLOBVector:
		dst = &SetBLOBVector{}
	case TagMessage:
		dst = &Message{}
	case TagDelProperty:
		dst = &DelProperty{}
	case TagGetProperties:
		dst = &GetProperties{}
	case TagEnableBLOB:
		dst = &EnableBLOB{}
	case TagNewTextVector:
		dst = &NewTextVector{}
	case TagNewNumberVector:
		dst = &NewNumberVector{}
	case TagNewSwitchVector:
		dst = &NewSwitchVector{}
	case TagNewBLOBVector:
		dst = &NewBLOBVector{}
	default:
		return tag, nil, fmt.Errorf("%w: %s", ErrUnrecognisedTag, name)
	}

	if err := xml.Unmarshal(raw, dst); err != nil {
		return tag, nil, fmt.Errorf("frame: parse %s: %w", name, err)
	}

	if err := validateRequired(tag, dst); err != nil {
		return tag, nil, err
	}

	return tag, dst, nil
}

// peekTagName reads the top-level element name out of raw without doing a
// full XML decode, so Parse can dispatch before allocating the typed
// destination.
func peekTagName(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("frame: peek tag: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// validateRequired enforces the required-attribute rule from spec §4.1:
// absence of device/name/perm (as applicable per kind) is a fatal parse
// error for that frame.
func validateRequired(tag Tag, dst interface{}) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s.%s", ErrMissingRequiredAttribute, tag, field)
	}

	switch v := dst.(type) {
	case *DefTextVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
		if v.Perm == "" {
			return missing("perm")
		}
	case *DefNumberVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
		if v.Perm == "" {
			return missing("perm")
		}
	case *DefSwitchVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
		if v.Perm == "" {
			return missing("perm")
		}
		if v.Rule == "" {
			return missing("rule")
		}
	case *DefLightVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *DefBLOBVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
		if v.Perm == "" {
			return missing("perm")
		}
	case *SetTextVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *SetNumberVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *SetSwitchVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *SetLightVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *SetBLOBVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *DelProperty:
		if v.Device == "" {
			return missing("device")
		}
	case *NewTextVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *NewNumberVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *NewSwitchVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *NewBLOBVector:
		if v.Device == "" {
			return missing("device")
		}
		if v.Name == "" {
			return missing("name")
		}
	case *EnableBLOB:
		if v.Device == "" {
			return missing("device")
		}
	}
	return nil
}
