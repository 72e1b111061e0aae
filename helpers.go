package main

import (
	"strings"

	"github.com/shazow/nmctl/nm"
)

// formatTableKey turns a field name like "hw_address" into a table key like
// "HW ADDRESS".
func formatTableKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

// formatList joins values with " - ", or "--" when there are none.
func formatList(values []string) string {
	if len(values) == 0 {
		return nm.NoValue
	}
	return strings.Join(values, " - ")
}

func formatValue(s string) string {
	if s == "" {
		return nm.NoValue
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
