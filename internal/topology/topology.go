// Package topology maps each load balancer in an inventory report to the
// resources around it: the internet gateway of its VPC, its target groups,
// the EC2 instances behind them and the databases those instances can reach
// through a shared security group.
package topology

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
)

// Service names read from the report
const (
	ServiceELB         = "ELB"
	ServiceGateway     = "Gateway"
	ServiceTargetGroup = "TargetGroup"
	ServiceEC2         = "EC2"
	ServiceRDS         = "RDS"

	internetGateway = "Internet Gateway"
)

// Gateway is the internet gateway attached to a load balancer's VPC
type Gateway struct {
	Name           string
	ID             string
	Type           string
	State          string
	VPCAttachments []string
}

// Instance is an EC2 instance registered behind a load balancer
type Instance struct {
	Name           string
	ID             string
	Type           string
	State          string
	PrivateIP      string
	SecurityGroups []string
	// TargetHealth is the health reported by the target group
	TargetHealth string
	Port         string
}

// Database is an RDS instance sharing a security group with an instance
type Database struct {
	Name           string
	ID             string
	Engine         string
	Status         string
	Endpoint       string
	SecurityGroups []string
}

// TargetGroup is a target group attached to a load balancer
type TargetGroup struct {
	Name                string
	ID                  string
	Protocol            string
	Port                string
	HealthCheckProtocol string
	TargetType          string
	// Targets holds the raw "id:port (health)" entries
	Targets   []string
	Instances []Instance
	Databases []Database
}

// LoadBalancer is the topology rooted at one load balancer
type LoadBalancer struct {
	Region  string
	Name    string
	ID      string
	Type    string
	Scheme  string
	DNSName string
	VPCID   string

	Gateway      *Gateway
	TargetGroups []TargetGroup
	// Instances registered directly with a classic load balancer
	Instances []Instance
	Databases []Database
}

// InternetFacing reports whether the load balancer is reachable from the internet
func (lb LoadBalancer) InternetFacing() bool {
	return strings.EqualFold(lb.Scheme, "internet-facing")
}

// Topology holds one entry per load balancer, ordered by region then name
type Topology struct {
	LoadBalancers []LoadBalancer
}

// index groups the resources of one service by region
type index map[string]inventory.Resources

func newIndex(resources inventory.Resources) index {
	idx := make(index)
	for _, res := range resources {
		idx[res.Region] = append(idx[res.Region], res)
	}
	return idx
}

// Build maps every load balancer in the report
func Build(report *inventory.Report) *Topology {
	gateways := newIndex(report.Resources[ServiceGateway])
	groups := newIndex(report.Resources[ServiceTargetGroup])
	instances := newIndex(report.Resources[ServiceEC2])
	databases := newIndex(report.Resources[ServiceRDS])

	topology := &Topology{}
	for _, res := range report.Resources[ServiceELB] {
		lb := LoadBalancer{
			Region:  res.Region,
			Name:    res.Name,
			ID:      res.ID,
			Type:    detailString(res, "Type"),
			Scheme:  detailString(res, "Scheme"),
			DNSName: detailString(res, "DNS Name"),
			VPCID:   detailString(res, "VPC ID"),
		}
		if lb.Name == "" {
			lb.Name = lb.ID
		}

		lb.Gateway = findGateway(gateways[res.Region], lb.VPCID)

		for _, tg := range groups[res.Region] {
			if !slices.Contains(detailStrings(tg, "Load Balancer ARNs"), lb.ID) {
				continue
			}
			group := targetGroup(tg)
			group.Instances = matchTargets(instances[res.Region], group.Targets)
			group.Databases = sharedDatabases(databases[res.Region], group.Instances)
			lb.TargetGroups = append(lb.TargetGroups, group)
		}

		if registered := detailStrings(res, "Instances"); len(registered) > 0 {
			lb.Instances = matchTargets(instances[res.Region], registered)
			lb.Databases = sharedDatabases(databases[res.Region], lb.Instances)
		}

		logging.Debug("Mapped load balancer", map[string]interface{}{
			"region":        lb.Region,
			"load_balancer": lb.Name,
			"vpc_id":        lb.VPCID,
			"target_groups": len(lb.TargetGroups),
		})
		topology.LoadBalancers = append(topology.LoadBalancers, lb)
	}

	sort.SliceStable(topology.LoadBalancers, func(i, j int) bool {
		a, b := topology.LoadBalancers[i], topology.LoadBalancers[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Name < b.Name
	})
	return topology
}

// findGateway returns the internet gateway attached to vpcID, falling back
// to any other gateway in that VPC
func findGateway(gateways inventory.Resources, vpcID string) *Gateway {
	if vpcID == "" {
		return nil
	}
	var fallback *Gateway
	for _, res := range gateways {
		attached := detailString(res, "VPC ID") == vpcID ||
			slices.Contains(detailStrings(res, "VPC Attachments"), vpcID)
		if !attached {
			continue
		}
		gw := &Gateway{
			Name:           res.Name,
			ID:             res.ID,
			Type:           detailString(res, "Type"),
			State:          detailString(res, "State"),
			VPCAttachments: detailStrings(res, "VPC Attachments"),
		}
		if gw.Type == internetGateway {
			return gw
		}
		if fallback == nil {
			fallback = gw
		}
	}
	return fallback
}

func targetGroup(res inventory.Resource) TargetGroup {
	return TargetGroup{
		Name:                res.Name,
		ID:                  res.ID,
		Protocol:            detailString(res, "Protocol"),
		Port:                detailString(res, "Port"),
		HealthCheckProtocol: detailString(res, "Health Check Protocol"),
		TargetType:          detailString(res, "Target Type"),
		Targets:             detailStrings(res, "Targets"),
	}
}

// Target is one parsed target group entry
type Target struct {
	ID     string
	Port   string
	Health string
}

// ParseTarget splits an "id:port (health)" entry. Port and health are
// optional; IPv6 targets keep every colon but the last.
func ParseTarget(entry string) Target {
	entry = strings.TrimSpace(entry)
	var t Target
	if open := strings.LastIndex(entry, " ("); open >= 0 && strings.HasSuffix(entry, ")") {
		t.Health = entry[open+2 : len(entry)-1]
		entry = entry[:open]
	}
	if colon := strings.LastIndex(entry, ":"); colon >= 0 {
		t.ID, t.Port = entry[:colon], entry[colon+1:]
	} else {
		t.ID = entry
	}
	return t
}

// matchTargets resolves target entries against EC2 instances by instance ID
// or private IP. Unresolved targets are dropped.
func matchTargets(candidates inventory.Resources, targets []string) []Instance {
	var out []Instance
	seen := make(map[string]bool)
	for _, entry := range targets {
		target := ParseTarget(entry)
		if target.ID == "" {
			continue
		}
		for _, res := range candidates {
			if res.ID != target.ID && detailString(res, "Private IP") != target.ID {
				continue
			}
			key := res.ID + ":" + target.Port
			if seen[key] {
				break
			}
			seen[key] = true
			out = append(out, Instance{
				Name:           res.Name,
				ID:             res.ID,
				Type:           detailString(res, "Instance Type"),
				State:          detailString(res, "State"),
				PrivateIP:      detailString(res, "Private IP"),
				SecurityGroups: detailStrings(res, "Security Groups"),
				TargetHealth:   target.Health,
				Port:           target.Port,
			})
			break
		}
	}
	return out
}

// sharedDatabases returns the databases with a security group in common with
// any of the instances
func sharedDatabases(candidates inventory.Resources, instances []Instance) []Database {
	groups := make(map[string]bool)
	for _, inst := range instances {
		for _, sg := range inst.SecurityGroups {
			groups[sg] = true
		}
	}
	if len(groups) == 0 {
		return nil
	}

	var out []Database
	for _, res := range candidates {
		dbGroups := detailStrings(res, "Security Groups")
		if !slices.ContainsFunc(dbGroups, func(sg string) bool { return groups[sg] }) {
			continue
		}
		out = append(out, Database{
			Name:           res.Name,
			ID:             res.ID,
			Engine:         detailString(res, "Engine"),
			Status:         detailString(res, "Status"),
			Endpoint:       detailString(res, "Endpoint"),
			SecurityGroups: dbGroups,
		})
	}
	return out
}

func detailString(res inventory.Resource, key string) string {
	switch v := res.Details[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// detailStrings reads a list detail. Reports decoded from JSON carry
// []interface{}, and comma-separated strings are split.
func detailStrings(res inventory.Resource, key string) []string {
	var out []string
	switch v := res.Details[key].(type) {
	case []string:
		out = v
	case []interface{}:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
