// Package numfmt renders INDI number element values using the protocol's
// printf-style and sexagesimal ("%w.fm") format strings.
package numfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format renders value (the element's raw wire string, possibly
// sexagesimal) according to format, an INDI number format string such as
// "%5.2f" or "%9.6m".
func Format(format, value string) string {
	negative := strings.HasPrefix(value, "-")
	if negative {
		value = strings.TrimPrefix(value, "-")
	}

	parts := splitSexagesimal(value)

	nums := make([]float64, 3)
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			f = 0
		}
		nums[i] = f
	}

	if strings.HasPrefix(format, "%") && strings.HasSuffix(format, "m") {
		return sexagesimal(format, negative, nums)
	}
	return printf(format, negative, nums)
}

// splitSexagesimal splits value on the first separator found among ' ', ':',
// ';', padding missing trailing components (seconds, then minutes) with "0".
func splitSexagesimal(value string) []string {
	var parts []string
	switch {
	case strings.Contains(value, " "):
		parts = strings.Split(value, " ")
	case strings.Contains(value, ":"):
		parts = strings.Split(value, ":")
	case strings.Contains(value, ";"):
		parts = strings.Split(value, ";")
	default:
		parts = []string{value, "0", "0"}
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	for i, p := range parts {
		if p == "" {
			parts[i] = "0"
		}
	}
	return parts[:3]
}

// printf combines the three components into a single float, d + m/60 +
// s/3600, and renders it with the given printf verb.
func printf(format string, negative bool, nums []float64) string {
	value := nums[0] + nums[1]/60 + nums[2]/3600
	if negative {
		value = -value
	}
	return fmt.Sprintf(format, value)
}

// sexagesimal splits/normalizes nums into degrees:minutes:seconds and
// renders according to the f precision selector in "%w.fm".
func sexagesimal(format string, negative bool, nums []float64) string {
	degrees, minutes, seconds := nums[0], nums[1], nums[2]

	// Fold fractional degrees/minutes down into the finer component.
	if fract, whole := math.Modf(degrees); fract != 0 {
		degrees = whole
		minutes += 60 * fract
	}
	if fract, whole := math.Modf(minutes); fract != 0 {
		minutes = whole
		seconds += 60 * fract
	}

	// Carry overflow back up: seconds >= 60 carries into minutes, minutes
	// >= 60 carries into degrees.
	for seconds >= 60 {
		seconds -= 60
		minutes++
	}
	for minutes >= 60 {
		minutes -= 60
		degrees++
	}

	w, f := parseSexagesimalFormat(format)

	var number string
	if negative {
		number = fmt.Sprintf("-%d:", int(degrees))
	} else {
		number = fmt.Sprintf("%d:", int(degrees))
	}

	switch f {
	case "3":
		number += fmt.Sprintf("%02.0f", minutes+seconds/60.0)
	case "5":
		number += fmt.Sprintf("%04.1f", minutes+seconds/60.0)
	case "6":
		number += fmt.Sprintf("%02d:%02.0f", int(minutes), seconds)
	case "8":
		number += fmt.Sprintf("%02d:%04.1f", int(minutes), seconds)
	default: // "9" and any unrecognized f fall back to the most precise form
		number += fmt.Sprintf("%02d:%05.2f", int(minutes), seconds)
	}

	if w > len(number) {
		number = strings.Repeat(" ", w-len(number)) + number
	}
	return number
}

// parseSexagesimalFormat splits "%w.fm" into its width and precision-selector
// parts. Malformed formats fall back to width 0, selector "9".
func parseSexagesimalFormat(format string) (width int, selector string) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(format, "%"), "m")
	wf := strings.SplitN(trimmed, ".", 2)
	if len(wf) != 2 {
		return 0, "9"
	}
	w, err := strconv.Atoi(wf[0])
	if err != nil {
		w = 0
	}
	return w, wf[1]
}
