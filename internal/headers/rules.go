package headers

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// DomainRule associates hosts containing Key with a user-agent class,
// optional extra headers and a politeness delay.
type DomainRule struct {
	Key          string
	UserAgent    UserAgentClass
	ExtraHeaders map[string]string
	Delay        time.Duration
}

func (r DomainRule) clone() DomainRule {
	r.ExtraHeaders = copyMap(r.ExtraHeaders)
	return r
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []DomainRule {
	return []DomainRule{
		{
			Key:       "anthropic.com",
			UserAgent: HonestBot,
			ExtraHeaders: map[string]string{
				"Sec-CH-UA":          `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
				"Sec-CH-UA-Mobile":   "?0",
				"Sec-CH-UA-Platform": `"macOS"`,
			},
		},
		{Key: "bloomberg.com", UserAgent: ChromeMac, Delay: 2 * time.Second},
		{Key: "nytimes.com", UserAgent: ChromeWindows, Delay: 1500 * time.Millisecond},
	}
}

// rulesFile is the on-disk YAML schema:
//
//	rules:
//	  - key: bloomberg.com
//	    userAgent: chrome_mac
//	    delaySeconds: 2
//	    headers:
//	      X-Foo: bar
type rulesFile struct {
	Rules []struct {
		Key          string            `yaml:"key"`
		UserAgent    string            `yaml:"userAgent"`
		DelaySeconds float64           `yaml:"delaySeconds"`
		Headers      map[string]string `yaml:"headers"`
	} `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file.
func LoadRules(path string) ([]DomainRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

// ParseRules decodes an ordered rule table from YAML.
func ParseRules(b []byte) ([]DomainRule, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	out := make([]DomainRule, 0, len(rf.Rules))
	for i, r := range rf.Rules {
		key := strings.ToLower(strings.TrimSpace(r.Key))
		if key == "" {
			return nil, fmt.Errorf("rule %d: empty key", i)
		}
		class := UserAgentClass(strings.TrimSpace(r.UserAgent))
		if !class.Known() {
			return nil, fmt.Errorf("rule %d (%s): unknown user agent class %q", i, key, r.UserAgent)
		}
		if r.DelaySeconds < 0 || math.IsNaN(r.DelaySeconds) {
			return nil, fmt.Errorf("rule %d (%s): delay must be non-negative", i, key)
		}
		out = append(out, DomainRule{
			Key:          key,
			UserAgent:    class,
			ExtraHeaders: copyMap(r.Headers),
			Delay:        time.Duration(r.DelaySeconds * float64(time.Second)),
		})
	}
	return out, nil
}
