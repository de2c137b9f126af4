package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// stringFields holds the dotted json path of every string field in Config.
// YAML turns unquoted values such as `group_log: -1001234567` or
// `retention: 0` into numbers; those are written back as strings so the
// strict decoder accepts them.
var stringFields = collectStringFields(reflect.TypeOf(Config{}), "", map[string]bool{})

func collectStringFields(t reflect.Type, prefix string, out map[string]bool) map[string]bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.String:
			out[path] = true
		case reflect.Struct:
			collectStringFields(ft, path, out)
		}
	}
	return out
}

// isYAML picks the config format: by extension first, then by content for
// files like "timerbot.conf".
func isYAML(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	case ".json":
		return false
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || trimmed[0] != '{'
}

// yamlToJSON rewrites a YAML document as JSON so both formats go through
// the same strict decoder. JSON input is returned unchanged.
func yamlToJSON(path string, data []byte) ([]byte, error) {
	if !isYAML(path, data) {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if v == nil {
		v = map[string]any{}
	}
	j, err := json.Marshal(normalizeYAML("", v))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return j, nil
}

func normalizeYAML(path string, in any) any {
	switch x := in.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(join(path, k), v)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			key := fmt.Sprint(k)
			m[key] = normalizeYAML(join(path, key), v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(path, x[i])
		}
		return x
	}
	if !stringFields[path] {
		return in
	}
	switch x := in.(type) {
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return in
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
