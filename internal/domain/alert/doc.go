// Package alert contains core domain types for emergency alert coordination.
//
// It defines Record (one patient-raised emergency with a single mutable
// status), the Severity/Status/Decision enumerations, the display ordering
// used by responder views, and Clone helpers to avoid leaking internal
// references.
package alert
