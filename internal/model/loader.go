package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"YcrudAPI/internal/logger"

	"gopkg.in/yaml.v3"
)

func LoadResourcesFromDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return err
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := ParseResource(name, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		Registry[name] = res
		logger.Info("resource_loaded", map[string]any{
			"resource":  name,
			"relations": len(res.Schema.Relations),
			"fields":    len(res.Schema.Fields),
		})
	}
	return nil
}

// ParseResource validates the YAML structure first and only then decodes it.
func ParseResource(name string, data []byte) (*Resource, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	// [0] is the document, its content the root mapping
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty YAML")
	}
	if err := validateYAMLNode(root.Content[0], "resource"); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var res Resource
	if err := root.Decode(&res); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	res.Name = name
	res.Schema.Name = name
	if res.Schema.Collection == "" {
		res.Schema.Collection = name
	}
	if res.Path == "" {
		res.Path = "/" + name
	}
	res.Options.Serialize.resolveProjections()
	return &res, nil
}
