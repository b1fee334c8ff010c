// Package report publishes finished run reports: as a log line, a JSON
// document, a terminal table, or onto a capped Redis list shared by a
// fleet of devices.
package report
