package model

import (
	"fmt"
	"sort"
)

// Registry holds every loaded resource by name. It is filled once by
// InitRegistry at startup and read-only afterwards.
var Registry = map[string]*Resource{}

func InitRegistry(dir string) error {
	before := readAllocBytes()
	if err := LoadResourcesFromDir(dir); err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	if err := LinkRelations(); err != nil {
		return fmt.Errorf("link error: %w", err)
	}
	if err := ValidateAllResources(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	logRegistryStats(before)
	return nil
}

func GetResource(name string) *Resource {
	if r, ok := Registry[name]; ok {
		return r
	}
	return nil
}

// ResourceNames returns registered names in a stable order.
func ResourceNames() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
