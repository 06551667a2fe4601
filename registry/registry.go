// Package registry manages the test classes known to the process and
// resolves run plans into ordered suites for the engine.
package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/flowtest/flowtest/types"
)

// Registry holds registered test classes by name.
type Registry struct {
	config  Config
	mu      sync.RWMutex
	classes map[string]*types.ClassDescriptor
	order   []string
}

// Config contains registry configuration.
type Config struct {
	Log log.Logger
}

// NewRegistry creates a new registry instance.
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Registry{
		config:  cfg,
		classes: make(map[string]*types.ClassDescriptor),
	}
}

// Register adds a class descriptor under its name. Registering two classes
// with the same name is a configuration error.
func (r *Registry) Register(class *types.ClassDescriptor) error {
	if class == nil || class.Name == "" {
		return fmt.Errorf("class descriptor with a name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[class.Name]; ok {
		return fmt.Errorf("class %q is already registered", class.Name)
	}
	r.classes[class.Name] = class
	r.order = append(r.order, class.Name)
	r.config.Log.Debug("Registered test class", "class", class.Name, "cases", len(class.Cases))
	return nil
}

// Class returns the descriptor registered under name.
func (r *Registry) Class(name string) (*types.ClassDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	class, ok := r.classes[name]
	return class, ok
}

// AllAsSuite returns every registered class, in registration order, as a
// single suite. Used when no run plan is supplied.
func (r *Registry) AllAsSuite(name string) *types.Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	suite := &types.Suite{Name: name}
	for _, className := range r.order {
		suite.Classes = append(suite.Classes, r.classes[className])
	}
	return suite
}

// planFile is the on-disk shape of a run plan.
type planFile struct {
	Suites []planSuite `yaml:"suites"`
}

type planSuite struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Classes     []string `yaml:"classes"`
}

// LoadPlan reads a YAML run plan and resolves it against the registered
// classes. Unknown class names are an error.
func (r *Registry) LoadPlan(path string) ([]*types.Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run plan: %w", err)
	}
	return r.ResolvePlan(data)
}

// ResolvePlan resolves a YAML run plan document against the registered
// classes.
func (r *Registry) ResolvePlan(data []byte) ([]*types.Suite, error) {
	var plan planFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse run plan: %w", err)
	}
	if len(plan.Suites) == 0 {
		return nil, fmt.Errorf("run plan contains no suites")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	suites := make([]*types.Suite, 0, len(plan.Suites))
	for _, ps := range plan.Suites {
		if ps.Name == "" {
			return nil, fmt.Errorf("run plan suite is missing a name")
		}
		suite := &types.Suite{Name: ps.Name, Description: ps.Description}
		for _, className := range ps.Classes {
			class, ok := r.classes[className]
			if !ok {
				return nil, fmt.Errorf("run plan suite %q references unknown class %q", ps.Name, className)
			}
			suite.Classes = append(suite.Classes, class)
		}
		suites = append(suites, suite)
	}
	r.config.Log.Debug("Run plan resolved", "suites", len(suites))
	return suites, nil
}
