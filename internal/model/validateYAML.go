package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// allowed keys per mapping context
var allowedResourceKeys = map[string]bool{
	"path":         true,
	"collection":   true,
	"primary_keys": true,
	"fields":       true,
	"relations":    true,
	"query":        true,
	"routes":       true,
	"params":       true,
	"auth":         true,
	"serialize":    true,
}

var allowedFieldKeys = map[string]bool{
	"name": true,
	"type": true,
}

var allowedRelationKeys = map[string]bool{
	"ref":           true,
	"local_field":   true,
	"foreign_field": true,
	"just_one":      true,
}

var allowedQueryKeys = map[string]bool{
	"allow":           true,
	"exclude":         true,
	"persist":         true,
	"sort":            true,
	"join":            true,
	"limit":           true,
	"max_limit":       true,
	"always_paginate": true,
}

var allowedSortKeys = map[string]bool{
	"field": true,
	"order": true,
}

var allowedJoinKeys = map[string]bool{
	"eager":   true,
	"allow":   true,
	"exclude": true,
}

var allowedRoutesKeys = map[string]bool{
	"exclude":     true,
	"update_one":  true,
	"replace_one": true,
	"delete_one":  true,
}

var allowedWriteRouteKeys = map[string]bool{
	"allow_params_override": true,
	"return_shallow":        true,
}

var allowedDeleteRouteKeys = map[string]bool{
	"return_deleted": true,
}

var allowedParamKeys = map[string]bool{
	"field": true,
	"type":  true,
}

var allowedAuthKeys = map[string]bool{
	"persist": true,
}

var allowedSerializeKeys = map[string]bool{
	"get_many":    true,
	"get":         true,
	"create_many": true,
	"create":      true,
	"update":      true,
	"replace":     true,
	"delete":      true,
}

var allowedFieldTypeValues = map[string]bool{
	"id":     true,
	"string": true,
	"number": true,
	"bool":   true,
	"date":   true,
	"object": true,
	"array":  true,
	"mixed":  true,
}

var allowedParamTypeValues = map[string]bool{
	"string": true,
	"number": true,
	"id":     true,
}

var contextKeys = map[string]map[string]bool{
	"resource":     allowedResourceKeys,
	"field":        allowedFieldKeys,
	"relation":     allowedRelationKeys,
	"query":        allowedQueryKeys,
	"sort":         allowedSortKeys,
	"join":         allowedJoinKeys,
	"routes":       allowedRoutesKeys,
	"write-route":  allowedWriteRouteKeys,
	"delete-route": allowedDeleteRouteKeys,
	"param":        allowedParamKeys,
	"auth":         allowedAuthKeys,
	"serialize":    allowedSerializeKeys,
}

// nextContext maps (context, key) to the context of the value node.
// Contexts ending in "-map" hold free-form keys whose values share one context.
func nextContext(context, key string) string {
	switch context {
	case "resource":
		switch key {
		case "fields":
			return "fields-seq"
		case "relations":
			return "relations-map"
		case "query", "routes", "auth", "serialize":
			return key
		case "params":
			return "params-map"
		}
	case "relations-map":
		return "relation"
	case "params-map":
		return "param"
	case "query":
		switch key {
		case "sort":
			return "sort-seq"
		case "join":
			return "join-map"
		}
	case "join-map":
		return "join"
	case "routes":
		switch key {
		case "update_one", "replace_one":
			return "write-route"
		case "delete_one":
			return "delete-route"
		}
	}
	return "value"
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "resource"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		allowedKeys := contextKeys[context] // nil: free form

		for i := 0; i < len(node.Content); i += 2 {
			key := node.Content[i].Value
			valNode := node.Content[i+1]

			if allowedKeys != nil && !allowedKeys[key] {
				return fmt.Errorf("unknown key '%s' in %s (line %d)", key, context, node.Content[i].Line)
			}
			if context == "field" && key == "type" && !allowedFieldTypeValues[valNode.Value] {
				return fmt.Errorf("unknown type value '%s' in field (line %d)", valNode.Value, valNode.Line)
			}
			if context == "param" && key == "type" && !allowedParamTypeValues[valNode.Value] {
				return fmt.Errorf("unknown type value '%s' in param (line %d)", valNode.Value, valNode.Line)
			}

			if err := validateYAMLNode(valNode, nextContext(context, key)); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		itemContext := context
		switch context {
		case "fields-seq":
			itemContext = "field"
		case "sort-seq":
			itemContext = "sort"
		}
		for _, item := range node.Content {
			if err := validateYAMLNode(item, itemContext); err != nil {
				return err
			}
		}

	case yaml.ScalarNode:
		// scalars are checked by their parent mapping
	}

	return nil
}
