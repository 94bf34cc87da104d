// Package ssh runs shell commands on cluster nodes.
//
// Client executes over SSH with key-based authentication and connection
// retry, for nodes that are still booting when the coordinator reaches them.
// LocalRunner executes on the current host, for the agent mode where the
// join runs from a worker's own user data. Both report a failed command as
// a *CommandError carrying the exit code and combined output.
//
// Security: Host key verification is disabled by default for ephemeral nodes.
// Configure HostKeyCallback for environments with persistent servers.
package ssh
