// Package labels provides consistent labeling for cloud resources created on
// behalf of a cluster.
//
// All labels use the kubejoin.io domain prefix and follow a builder pattern
// for constructing label sets with cluster name, role and manager
// identification.
package labels
