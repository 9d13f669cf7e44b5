package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrPolicyExists   = errors.New("selection policy already registered")
	ErrPolicyNotFound = errors.New("selection policy not found")
)

var policyRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectionPolicy
}{
	m: map[string]SelectionPolicy{
		RandomPolicy{}.Name():  RandomPolicy{},
		ClusterPolicy{}.Name(): ClusterPolicy{},
	},
}

// RegisterSelectionPolicy makes a policy resolvable by name.
func RegisterSelectionPolicy(policy SelectionPolicy) error {
	if policy == nil {
		return errors.New("selection policy is required")
	}
	name := policy.Name()
	if name == "" {
		return errors.New("selection policy name is required")
	}

	policyRegistry.mu.Lock()
	defer policyRegistry.mu.Unlock()

	if _, exists := policyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrPolicyExists, name)
	}
	policyRegistry.m[name] = policy
	return nil
}

func ResolveSelectionPolicy(name string) (SelectionPolicy, error) {
	policyRegistry.mu.RLock()
	policy, ok := policyRegistry.m[name]
	policyRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, name)
	}
	return policy, nil
}

func ListSelectionPolicies() []string {
	policyRegistry.mu.RLock()
	defer policyRegistry.mu.RUnlock()

	names := make([]string, 0, len(policyRegistry.m))
	for name := range policyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unregisterSelectionPolicyForTests(name string) {
	policyRegistry.mu.Lock()
	defer policyRegistry.mu.Unlock()
	delete(policyRegistry.m, name)
}
