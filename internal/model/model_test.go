package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Groups(t *testing.T) {
	device := &Device{
		Name: "TestDevice",
		Properties: map[string]*Property{
			"Prop1": {Header: Header{Group: "Group A"}, Kind: KindText},
			"Prop2": {Header: Header{Group: "Group A"}, Kind: KindSwitch},
			"Prop3": {Header: Header{Group: "Group B"}, Kind: KindLight},
		},
	}

	groups := device.Groups()

	require.NotNil(t, groups)
	assert.Equal(t, []string{"Group A", "Group B"}, groups)
}

func Test_ParsePropertyState_IgnoresCase(t *testing.T) {
	assert.Equal(t, StateBusy, ParsePropertyState("BUSY"))
	assert.Equal(t, StateOk, ParsePropertyState("ok"))
	assert.Equal(t, StateAlert, ParsePropertyState("Alert"))
	assert.Equal(t, StateAlert, ParsePropertyState("garbage"))
}

func Test_Property_Ordered_MixedAlphanumeric(t *testing.T) {
	p := NewProperty(Header{Device: "Scope", Name: "ELEMS"}, KindText, "")
	p.SetElement(&Element{Name: "e10", Label: "Elem10"})
	p.SetElement(&Element{Name: "e2", Label: "Elem2"})
	p.SetElement(&Element{Name: "e1", Label: "Elem1"})

	ordered := p.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"Elem1", "Elem2", "Elem10"}, []string{
		ordered[0].Label, ordered[1].Label, ordered[2].Label,
	})
}
