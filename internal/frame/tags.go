package frame

// Tag identifies a recognised top-level INDI XML element.
type Tag string

const (
	TagDefTextVector   Tag = "defTextVector"
	TagDefNumberVector Tag = "defNumberVector"
	TagDefSwitchVector Tag = "defSwitchVector"
	TagDefLightVector  Tag = "defLightVector"
	TagDefBLOBVector   Tag = "defBLOBVector"

	TagSetTextVector   Tag = "setTextVector"
	TagSetNumberVector Tag = "setNumberVector"
	TagSetSwitchVector Tag = "setSwitchVector"
	TagSetLightVector  Tag = "setLightVector"
	TagSetBLOBVector   Tag = "setBLOBVector"

	TagMessage     Tag = "message"
	TagDelProperty Tag = "delProperty"

	TagGetProperties  Tag = "getProperties"
	TagEnableBLOB     Tag = "enableBLOB"
	TagNewTextVector  Tag = "newTextVector"
	TagNewNumberVector Tag = "newNumberVector"
	TagNewSwitchVector Tag = "newSwitchVector"
	TagNewBLOBVector  Tag = "newBLOBVector"
)

// serverTags are frames a driver/server sends toward a client.
var serverTags = map[Tag]bool{
	TagDefTextVector:   true,
	TagDefNumberVector: true,
	TagDefSwitchVector: true,
	TagDefLightVector:  true,
	TagDefBLOBVector:   true,
	TagSetTextVector:   true,
	TagSetNumberVector: true,
	TagSetSwitchVector: true,
	TagSetLightVector:  true,
	TagSetBLOBVector:   true,
	TagMessage:         true,
	TagDelProperty:     true,
}

// clientTags are frames a client sends toward a driver/server.
var clientTags = map[Tag]bool{
	TagGetProperties:   true,
	TagEnableBLOB:      true,
	TagNewTextVector:   true,
	TagNewNumberVector: true,
	TagNewSwitchVector: true,
	TagNewBLOBVector:   true,
}

// recognisedTags is the union consulted by the framer when scanning for the
// start of a new frame in the Idle state; either direction may appear on a
// bridged stream.
var recognisedTags = func() map[Tag]bool {
	all := map[Tag]bool{}
	for t := range serverTags {
		all[t] = true
	}
	for t := range clientTags {
		all[t] = true
	}
	return all
}()

// IsServerTag reports whether t is a server->client frame kind.
func IsServerTag(t Tag) bool { return serverTags[t] }

// IsClientTag reports whether t is a client->server frame kind.
func IsClientTag(t Tag) bool { return clientTags[t] }
