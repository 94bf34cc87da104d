// Package naming derives node, firewall and credential object names from the
// cluster name so every component agrees on them.
package naming
