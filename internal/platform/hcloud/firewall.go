package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/util/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ContractPorts is every range the join contract needs open, on either role.
func ContractPorts() []kubeadm.PortRange {
	ports := append([]kubeadm.PortRange{}, kubeadm.ControlPlanePorts...)
	for _, w := range kubeadm.WorkerPorts {
		if len(kubeadm.MissingPorts([]kubeadm.PortRange{w}, ports)) > 0 {
			ports = append(ports, w)
		}
	}
	return ports
}

// ContractRules builds inbound TCP rules for the join contract, admitting
// only the given source CIDRs.
func ContractRules(sources []string) ([]hcloud.FirewallRule, error) {
	sourceNets, err := parseCIDRs(sources)
	if err != nil {
		return nil, err
	}
	if len(sourceNets) == 0 {
		return nil, fmt.Errorf("at least one worker source CIDR is required")
	}

	ports := ContractPorts()
	rules := make([]hcloud.FirewallRule, 0, len(ports))
	for _, p := range ports {
		rules = append(rules, hcloud.FirewallRule{
			Description: hcloud.Ptr(p.Description),
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolTCP,
			Port:        hcloud.Ptr(p.String()),
			SourceIPs:   sourceNets,
		})
	}
	return rules, nil
}

// EnsureFirewall creates the named firewall with the contract rules, or
// replaces the rules of an existing one. New firewalls are applied to all
// servers matching selector.
func (c *FirewallClient) EnsureFirewall(ctx context.Context, name, selector string, sources []string, labels map[string]string) (*hcloud.Firewall, error) {
	rules, err := ContractRules(sources)
	if err != nil {
		return nil, err
	}

	var fw *hcloud.Firewall
	err = retry.WithExponentialBackoff(ctx, func() error {
		existing, _, err := c.client.Firewall.Get(ctx, name)
		if err != nil {
			return c.classify(fmt.Errorf("failed to get firewall %s: %w", name, err))
		}

		if existing == nil {
			res, _, err := c.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
				Name:   name,
				Labels: labels,
				Rules:  rules,
				ApplyTo: []hcloud.FirewallResource{{
					Type:          hcloud.FirewallResourceTypeLabelSelector,
					LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: selector},
				}},
			})
			if err != nil {
				return c.classify(fmt.Errorf("failed to create firewall %s: %w", name, err))
			}
			if err := c.client.Action.WaitFor(ctx, res.Actions...); err != nil {
				return retry.Fatal(fmt.Errorf("failed to apply firewall %s: %w", name, err))
			}
			fw = res.Firewall
			return nil
		}

		actions, _, err := c.client.Firewall.SetRules(ctx, existing, hcloud.FirewallSetRulesOpts{Rules: rules})
		if err != nil {
			return c.classify(fmt.Errorf("failed to set rules on firewall %s: %w", name, err))
		}
		if err := c.client.Action.WaitFor(ctx, actions...); err != nil {
			return retry.Fatal(fmt.Errorf("failed to apply rules on firewall %s: %w", name, err))
		}
		existing.Rules = rules
		fw = existing
		return nil
	},
		retry.WithMaxRetries(c.maxRetries),
		retry.WithInitialDelay(c.initialDelay))
	if err != nil {
		return nil, err
	}
	return fw, nil
}

// ValidateContract returns the contract port ranges the named firewall does
// not admit. An empty result means the contract is satisfied.
func (c *FirewallClient) ValidateContract(ctx context.Context, name string) ([]kubeadm.PortRange, error) {
	fw, _, err := c.client.Firewall.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get firewall %s: %w", name, err)
	}
	if fw == nil {
		return nil, fmt.Errorf("%w: %s", ErrFirewallNotFound, name)
	}

	var open []kubeadm.PortRange
	for _, rule := range fw.Rules {
		if rule.Direction != hcloud.FirewallRuleDirectionIn || rule.Protocol != hcloud.FirewallRuleProtocolTCP {
			continue
		}
		if rule.Port == nil || len(rule.SourceIPs) == 0 {
			continue
		}
		if *rule.Port == "any" {
			open = append(open, kubeadm.PortRange{From: 1, To: 65535})
			continue
		}
		r, err := kubeadm.ParsePortRange(*rule.Port)
		if err != nil {
			continue
		}
		open = append(open, r)
	}

	return kubeadm.MissingPorts(ContractPorts(), open), nil
}

func (c *FirewallClient) classify(err error) error {
	if isResourceLocked(err) {
		return err
	}
	return retry.Fatal(err)
}

// parseCIDRs parses a slice of CIDR strings into net.IPNet.
func parseCIDRs(cidrs []string) ([]net.IPNet, error) {
	nets := make([]net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid source CIDR %q: %w", cidr, err)
		}
		nets = append(nets, *n)
	}
	return nets, nil
}
