package migrate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/pedigree/pkg/core"
)

// upgradeV1 wraps a bare graph object into the v2 envelope.
// Version 1 stored the graph at the top level with an optional "settings" key.
func upgradeV1(doc map[string]any) (map[string]any, error) {
	graph := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "settings" {
			continue
		}
		graph[k] = v
	}

	out := map[string]any{
		"version": json.Number("2"),
		"graph":   graph,
	}

	raw, ok := doc["settings"]
	if !ok || raw == nil {
		return out, nil
	}
	settings, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("settings is %T, want object", raw)
	}

	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]any, 0, len(names))
	for _, name := range names {
		list = append(list, map[string]any{"name": name, "value": settings[name]})
	}
	out["settings"] = list
	return out, nil
}

// upgradeV2 renames the person "sex" field to a normalized "gender" and turns
// the settings list into a map.
func upgradeV2(doc map[string]any) (map[string]any, error) {
	graph, ok := doc["graph"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("graph is %T, want object", doc["graph"])
	}

	if persons, ok := graph["persons"].([]any); ok {
		for i, p := range persons {
			person, ok := p.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("person %d is %T, want object", i, p)
			}
			sex, _ := person["sex"].(string)
			delete(person, "sex")
			person["gender"] = string(core.ParseGender(sex))
		}
	}

	out := map[string]any{
		"schemaVersion": json.Number("3"),
		"graph":         graph,
	}

	raw, ok := doc["settings"]
	if !ok || raw == nil {
		return out, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("settings is %T, want list", raw)
	}

	settings := make(map[string]any, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("setting %d is %T, want object", i, item)
		}
		name, ok := entry["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("setting %d has no name", i)
		}
		settings[name] = entry["value"]
	}
	out["settings"] = settings
	return out, nil
}
