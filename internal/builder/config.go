package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"

	"github.com/qobs-build/shogun/internal/classify"
)

var defaultProfiles = map[string]ProfileSection{
	"release": {
		OptLevel: int64(2),
	},
	"debug": {
		OptLevel: "", // no -O
	},
}

const defaultProfile = "release"

// Config is the optional shogun.toml. Every field left unset falls back to
// the flags TensorFlow's debian packaging builds with.
type Config struct {
	Toolchain ToolchainSection          `toml:"toolchain"`
	Profile   map[string]ProfileSection `toml:"profile"`
	Exclude   ExcludeSection            `toml:"exclude"`
}

func (c Config) Profiles() []string {
	profiles := make([]string, 0, len(c.Profile))
	for k := range c.Profile {
		profiles = append(profiles, k)
	}
	slices.Sort(profiles)
	return profiles
}

// ToolchainSection defines the [toolchain] section
type ToolchainSection struct {
	Cxx                  string   `toml:"cxx"`
	Protoc               string   `toml:"protoc"`
	Ar                   string   `toml:"ar"`
	Bash                 string   `toml:"bash"`
	Cxxflags             []string `toml:"cxxflags"`
	CxxflagsTerse        []string `toml:"cxxflags-terse"`
	Includes             []string `toml:"includes"`
	Libs                 []string `toml:"libs"`
	ProtoTextTool        string   `toml:"proto-text-tool"`
	ProtoTextPrefix      string   `toml:"proto-text-prefix"`
	ProtoTextPlaceholder string   `toml:"proto-text-placeholder"`
	VersionScript        string   `toml:"version-script"`
}

// ProfileSection defines the [profile.*] section. opt-level is either an
// integer or a string such as "s".
type ProfileSection struct {
	OptLevel any `toml:"opt-level"`
}

func (p ProfileSection) optFlag() string {
	switch v := p.OptLevel.(type) {
	case int64:
		return "-O" + strconv.FormatInt(v, 10)
	case int:
		return "-O" + strconv.Itoa(v)
	case string:
		if v == "" {
			return ""
		}
		return "-O" + v
	default:
		return ""
	}
}

// ExcludeSection defines the [exclude] section. Sources are doublestar
// patterns dropped from source lists before compilation.
type ExcludeSection struct {
	Sources []string `toml:"sources"`
}

// mergeStructs merges the fields of the src struct into the dst struct. Maps
// are merged key by key, with src entries replacing those of dst.
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() == reflect.Pointer && dstVal.Elem().Kind() == reflect.Map {
		return mergeMaps(dstVal.Elem(), reflect.ValueOf(src))
	}
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mergeMaps(dst, src reflect.Value) error {
	if src.Kind() == reflect.Pointer {
		src = src.Elem()
	}
	if src.Kind() != reflect.Map || src.Type() != dst.Type() {
		return fmt.Errorf("dst and src must be of the same map type")
	}
	if src.IsNil() {
		return nil
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	iter := src.MapRange()
	for iter.Next() {
		dst.SetMapIndex(iter.Key(), iter.Value())
	}
	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalConditionalSection is a helper to parse, evaluate and merge multiple sections with conditional logic
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			_, err := expr.Compile(key, expr.Env(env))
			if err == nil {
				conditionalFields[key] = subMap
			} else {
				baseFields[key] = val
			}
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// sorted so that merges are applied in a stable order
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		condMap := conditionalFields[expression]
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		// merge sections if the result is true
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// DefaultConfig returns the configuration used when no shogun.toml is given.
func DefaultConfig() *Config {
	return &Config{Profile: maps.Clone(defaultProfiles)}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := DefaultConfig()

	seedToolchainLists(rawConfig, &cfg.Toolchain)
	if err := unmarshalConditionalSection(rawConfig, "toolchain", &cfg.Toolchain, env); err != nil {
		return nil, err
	}
	profiles := make(map[string]ProfileSection)
	if err := unmarshalConditionalSection(rawConfig, "profile", &profiles, env); err != nil {
		return nil, err
	}
	maps.Copy(cfg.Profile, profiles)
	if err := unmarshalConditionalSection(rawConfig, "exclude", &cfg.Exclude, env); err != nil {
		return nil, err
	}

	for _, pat := range cfg.Exclude.Sources {
		if err := classify.ValidGlob(pat); err != nil {
			return nil, fmt.Errorf("[exclude] sources: %w", err)
		}
	}

	return cfg, nil
}

// seedToolchainLists fills the list fields the base [toolchain] table leaves
// unset with their defaults, so conditional sections extend the defaults
// instead of replacing them.
func seedToolchainLists(rawCfg map[string]any, t *ToolchainSection) {
	base, ok := rawCfg["toolchain"].(map[string]any)
	if !ok {
		return
	}
	for key, field := range map[string]struct {
		dst *[]string
		def []string
	}{
		"cxxflags":       {&t.Cxxflags, defaultCxxflags},
		"cxxflags-terse": {&t.CxxflagsTerse, defaultCxxflagsTerse},
		"includes":       {&t.Includes, defaultIncludes},
		"libs":           {&t.Libs, defaultLibs},
	} {
		if _, set := base[key]; !set {
			*field.dst = slices.Clone(field.def)
		}
	}
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
}

func NewConfigEnv() ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
	}
}
