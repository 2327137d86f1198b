// Package schedule assigns reminder times to selected challenge activities and
// converts between the time formats used by the flow: user-facing "H:MM AM/PM",
// stored "HH:MM", and calendar "HH:MM:SS".
//
// Noon is "12:xx PM" -> "12:xx"; midnight is "12:xx AM" -> "00:xx".
package schedule
