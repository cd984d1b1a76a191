// Package detect compares two consecutive snapshots and produces typed
// changes.
//
// Detection is a pure function of its inputs:
//   - Categories are visited in world.Categories order
//   - Within a category, field rules run in table order, then sub-event
//     lists in name order, then list entries in list order
//   - No previous snapshot means no changes (first run is never
//     "everything changed")
//
// A missing or malformed field never aborts detection. It is skipped and
// reported as a FieldWarning alongside the changes.
package detect
