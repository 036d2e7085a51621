package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/sentry-go/internal/pkg/filesystem"
)

// RuleSpec is one user rule as written in the rules file.
type RuleSpec struct {
	Pattern string `yaml:"pattern"`
	Unless  string `yaml:"unless"`
	When    string `yaml:"when"`
	Reason  string `yaml:"reason"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		High   []RuleSpec `yaml:"high"`
		Medium []RuleSpec `yaml:"medium"`
		Low    []RuleSpec `yaml:"low"`
	} `yaml:"rules"`
}

// LoadRulesFile reads and compiles user rules. A missing file yields an
// empty set.
func LoadRulesFile(path string) (RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return RuleSet{}, nil
	}
	path = filesystem.ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RuleSet{}, nil
		}
		return RuleSet{}, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return ParseRules(data, filepath.Base(path))
}

// ParseRules compiles a rules document.
func ParseRules(data []byte, source string) (RuleSet, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules %s: %w", source, err)
	}
	env, err := conditionEnv()
	if err != nil {
		return RuleSet{}, err
	}

	var set RuleSet
	tables := []struct {
		name  string
		specs []RuleSpec
		dst   *[]Rule
	}{
		{"high", file.Rules.High, &set.High},
		{"medium", file.Rules.Medium, &set.Medium},
		{"low", file.Rules.Low, &set.Low},
	}
	for _, table := range tables {
		for i, spec := range table.specs {
			rule, err := compileRule(env, spec, source)
			if err != nil {
				return RuleSet{}, fmt.Errorf("%s rule %d in %s: %w", table.name, i+1, source, err)
			}
			*table.dst = append(*table.dst, rule)
		}
	}
	return set, nil
}

func compileRule(env *cel.Env, spec RuleSpec, source string) (Rule, error) {
	if spec.Pattern == "" && spec.When == "" {
		return Rule{}, errors.New("pattern or when is required")
	}
	rule := Rule{Reason: spec.Reason, Source: source}
	if rule.Reason == "" {
		rule.Reason = "user rule"
	}
	if spec.Pattern != "" {
		re, err := regexp.Compile(`(?i)` + spec.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("pattern: %w", err)
		}
		rule.match = re
	}
	if spec.Unless != "" {
		re, err := regexp.Compile(`(?i)` + spec.Unless)
		if err != nil {
			return Rule{}, fmt.Errorf("unless: %w", err)
		}
		rule.unless = re
	}
	if spec.When != "" {
		ast, issues := env.Compile(spec.When)
		if issues != nil && issues.Err() != nil {
			return Rule{}, fmt.Errorf("when: %w", issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return Rule{}, fmt.Errorf("when: %w", err)
		}
		rule.when = program
	}
	return rule, nil
}

// conditionEnv declares the variables visible to rule conditions: the
// normalized command and its whitespace separated words.
func conditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("command", cel.StringType),
		cel.Variable("words", cel.ListType(cel.StringType)),
	)
}

func evalCondition(program cel.Program, command string) bool {
	out, _, err := program.Eval(map[string]interface{}{
		"command": command,
		"words":   strings.Fields(command),
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
