// Package validation holds the argument checks shared by flowbench
// constructors. Each check returns an *errors.ValidationError naming the
// component and field, so callers can report bad input uniformly.
package validation
