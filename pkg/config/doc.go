// Package config loads flowbench configuration from defaults, a YAML file
// and FLOWBENCH_* environment variables.
//
// Sizes accept human-readable values ("48KiB", "1 MiB", "2MB") and
// durations accept Go duration strings ("100ms", "2s"). Every section
// converts to the options struct of the package it configures, for
// example TransferConfig for pkg/transfer.
package config
