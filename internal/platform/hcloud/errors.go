package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ErrFirewallNotFound is returned when the named firewall does not exist.
var ErrFirewallNotFound = errors.New("firewall not found")

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action runs on the
// firewall. These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,   // Item is locked (action running)
		hcloud.ErrorCodeConflict, // Resource changed during request
		hcloud.ErrorCodeResourceUnavailable,
		hcloud.ErrorCodeRateLimitExceeded,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFirewallNotFound) || isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}
