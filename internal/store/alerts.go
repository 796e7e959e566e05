package store

// Alert formats the short cache-invalidation string published on the
// "from-indi" channel after every successful ingest (spec.md §4.3):
// "<FrameTag>:<property>:<device>", or the bare/device-scoped "message"
// forms, or "delProperty:<name>:<device>" / "delDevice:<device>".
func Alert(tag, property, device string) string {
	switch tag {
	case "message":
		if device == "" {
			return "message"
		}
		return "message:" + device
	case "delProperty":
		return "delProperty:" + property + ":" + device
	case "delDevice":
		return "delDevice:" + device
	default:
		return tag + ":" + property + ":" + device
	}
}
