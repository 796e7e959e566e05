package store

import "strings"

// entryValue extracts the json portion of a "<timestamp> <json>" log entry,
// as written by LogSnapshot. It returns "" for an entry with no separating
// space (treated as having no prior recorded value).
func entryValue(entry string) string {
	idx := strings.IndexByte(entry, ' ')
	if idx < 0 {
		return ""
	}
	return entry[idx+1:]
}

// changed reports whether jsonValue differs from the value portion of the
// list's current head entry, i.e. whether a LogSnapshot call against that
// head should actually write a new entry.
func changed(head, jsonValue string) bool {
	return ChangedEntry(head, jsonValue)
}

// ChangedEntry is the exported form of changed, used by store
// implementations outside this package (e.g. redisstore) to decide whether
// a LogSnapshot call needs to write.
func ChangedEntry(head, jsonValue string) bool {
	if head == "" {
		return true
	}
	return entryValue(head) != jsonValue
}

// formatEntry renders one change-detected log entry.
func formatEntry(timestamp, jsonValue string) string {
	return FormatEntry(timestamp, jsonValue)
}

// FormatEntry is the exported form of formatEntry.
func FormatEntry(timestamp, jsonValue string) string {
	return timestamp + " " + jsonValue
}
