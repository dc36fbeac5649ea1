// Package adapters holds one inventory adapter per supported AWS service.
// Adapters register themselves from init and are instantiated against a
// shared session by NewRegistry.
package adapters

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws/client"

	"awsinventory/internal/inventory"
)

// Factory builds an adapter bound to a session
type Factory func(p client.ConfigProvider) inventory.Adapter

// Info describes a registered adapter
type Info struct {
	Service string
	Label   string
	// Global services are collected once, from the home region
	Global bool
}

type registration struct {
	info    Info
	factory Factory
}

var registrations = make(map[string]registration)

// DependencyServices are the services the topology mapper reads
var DependencyServices = []string{"Gateway", "ELB", "TargetGroup", "EC2", "EKS", "RDS"}

func register(info Info, factory Factory) {
	if _, exists := registrations[info.Service]; exists {
		panic(fmt.Sprintf("adapter for service '%s' already registered", info.Service))
	}
	registrations[info.Service] = registration{info: info, factory: factory}
}

// Services returns the identifiers of every supported service, sorted
func Services() []string {
	names := make([]string, 0, len(registrations))
	for name := range registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the adapter descriptions ordered by service
func Describe() []Info {
	infos := make([]Info, 0, len(registrations))
	for _, name := range Services() {
		infos = append(infos, registrations[name].info)
	}
	return infos
}

// NewRegistry instantiates every adapter against p
func NewRegistry(p client.ConfigProvider) (*inventory.Registry, error) {
	reg := inventory.NewRegistry()
	for _, name := range Services() {
		if err := reg.Register(name, registrations[name].factory(p)); err != nil {
			return nil, fmt.Errorf("failed to register %s adapter: %w", name, err)
		}
	}
	return reg, nil
}
