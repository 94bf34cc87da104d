package kubeadm

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// CACertHashPrefix is the only hash algorithm kubeadm accepts for discovery pins.
const CACertHashPrefix = "sha256:"

// Errors returned when a join command is incomplete or malformed.
var (
	ErrMissingEndpoint   = errors.New("join command has no control plane endpoint")
	ErrMissingToken      = errors.New("join command has no token")
	ErrMissingCACertHash = errors.New("join command has no discovery CA cert hash")
	ErrInvalidJoin       = errors.New("invalid join command")
)

var (
	tokenPattern    = regexp.MustCompile(`^[a-z0-9.]+$`)
	hashPattern     = regexp.MustCompile(`^sha256:[a-fA-F0-9]+$`)
	hostPattern     = regexp.MustCompile(`^[A-Za-z0-9.:-]+$`)
	nodeNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]{0,251}[a-z0-9])?$`)
)

// JoinCommand is a structured "kubeadm join" invocation.
type JoinCommand struct {
	// Endpoint is the control plane API address as host:port.
	Endpoint string
	Token    string
	// CACertHash pins the cluster CA public key, e.g. "sha256:<hex>".
	CACertHash string
	// NodeName overrides the hostname the node registers with. Optional.
	NodeName string
}

// ParseJoinCommand extracts the endpoint, token and CA hash from the output of
// "kubeadm token create --print-join-command". Surrounding lines, line
// continuations and --flag=value forms are accepted. Token and hash flags are
// only read after the "join <host>:<port>" verb, so warnings printed before it
// cannot supply them.
func ParseJoinCommand(script string) (*JoinCommand, error) {
	fields := strings.Fields(script)
	cmd := &JoinCommand{}

	// next returns the next field that is not a line continuation and advances i.
	next := func(i *int) string {
		for j := *i + 1; j < len(fields); j++ {
			if fields[j] == `\` {
				continue
			}
			*i = j
			return fields[j]
		}
		return ""
	}

	for i := 0; i < len(fields); i++ {
		field := fields[i]
		name, inline, hasInline := strings.Cut(field, "=")
		key := strings.TrimLeft(name, "-")

		value := func() string {
			if hasInline {
				return inline
			}
			v := next(&i)
			if strings.HasPrefix(v, "--") {
				i--
				return ""
			}
			return v
		}

		switch {
		case field == "join" && cmd.Endpoint == "":
			j := i
			if endpoint := next(&j); isEndpoint(endpoint) {
				cmd.Endpoint = endpoint
				i = j
			}
		case cmd.Endpoint == "":
			continue
		case key == "token" && cmd.Token == "":
			cmd.Token = value()
		case strings.HasSuffix(key, "hash") && cmd.CACertHash == "":
			cmd.CACertHash = value()
		}
	}

	if cmd.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cmd.Token == "" {
		return nil, ErrMissingToken
	}
	if cmd.CACertHash == "" {
		return nil, ErrMissingCACertHash
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// isEndpoint reports whether s has the host:port shape of a join target.
func isEndpoint(s string) bool {
	host, port, err := net.SplitHostPort(s)
	return err == nil && host != "" && port != ""
}

// Validate checks every value that ends up on the command line so the
// rendered command never needs shell quoting.
func (c *JoinCommand) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.CACertHash == "" {
		return ErrMissingCACertHash
	}

	host, port, err := net.SplitHostPort(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q: %w", ErrInvalidJoin, c.Endpoint, err)
	}
	if host == "" || !hostPattern.MatchString(host) {
		return fmt.Errorf("%w: endpoint host %q", ErrInvalidJoin, host)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%w: endpoint port %q", ErrInvalidJoin, port)
	}
	if !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("%w: token contains unexpected characters", ErrInvalidJoin)
	}
	if err := ValidateCACertHash(c.CACertHash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJoin, err)
	}
	if c.NodeName != "" && !nodeNamePattern.MatchString(c.NodeName) {
		return fmt.Errorf("%w: node name %q", ErrInvalidJoin, c.NodeName)
	}
	return nil
}

// ValidateCACertHash checks the "sha256:<hex>" pin format.
func ValidateCACertHash(hash string) error {
	if !hashPattern.MatchString(hash) {
		return fmt.Errorf("CA cert hash %q must be %s followed by hex", hash, CACertHashPrefix)
	}
	return nil
}

// Args returns the kubeadm arguments for the join. CA verification is
// always pinned; the unsafe skip flag is never emitted.
func (c *JoinCommand) Args() []string {
	args := []string{
		"join", c.Endpoint,
		"--token", c.Token,
		"--discovery-token-ca-cert-hash", c.CACertHash,
	}
	if c.NodeName != "" {
		args = append(args, "--node-name", c.NodeName)
	}
	return args
}

// String renders the full command line.
func (c *JoinCommand) String() string {
	return "kubeadm " + strings.Join(c.Args(), " ")
}

// Redacted renders the command with the token masked, for logs.
func (c *JoinCommand) Redacted() string {
	masked := *c
	masked.Token = RedactToken(c.Token)
	return masked.String()
}

// RedactToken keeps the public token ID of an "id.secret" token and masks the rest.
func RedactToken(token string) string {
	if id, _, ok := strings.Cut(token, "."); ok {
		return id + ".****"
	}
	return "****"
}
