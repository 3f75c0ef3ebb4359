// Package domain models the incident report sheet and its expansion into
// map-ready point rows.
//
// # Data Source
//
// Reports arrive as rows of a shared Google Sheet maintained by field
// operators. The header row uses Ukrainian column names with two Latin
// exceptions for the coordinate columns:
//
//	Дата        — report date, kept as an opaque label
//	Область     — region (oblast)
//	Місто       — city
//	long, lat   — raw coordinate strings
//	Значення 1..Значення 10 — numeric value columns
//
// Any cell may be blank. The sheet is exported from localized tooling, so
// numeric cells may use a comma as the decimal separator ("2,5" means 2.5).
// All numeric parsing goes through [ParseDecimal] so the coordinate
// normalizer and the value-column parser coerce input identically.
//
// # Coordinate Encoding
//
// Coordinate cells carry WGS-84 degrees, but some exports emit fixed-point
// integers scaled by 10^7 (a common GPS encoding): "464702111" means
// 46.4702111. [Normalizer] recovers these per axis: a latitude outside
// ±90 or a longitude outside ±180 is divided by the configured scale before
// the final bounds check. The pair (0, 0) is the feed's sentinel for "no
// location recorded" and is rejected rather than plotted off the coast of
// Africa.
//
// # Unary Expansion
//
// Each record is expanded into max(values) derived rows, where every value
// column becomes a thermometer-encoded indicator: row i carries a 1 in
// column k exactly when i <= value[k]. A record whose values are all blank,
// zero, negative, or unparseable contributes no rows. See [Expand].
package domain
