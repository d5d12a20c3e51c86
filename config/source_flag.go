package config

import (
	"github.com/spf13/pflag"
)

// FlagSource command line flag data source
// Only flags the user actually set (Changed) override lower priority sources
type FlagSource struct {
	flags    *pflag.FlagSet
	bindings map[string]string // config key -> flag name
	priority int
}

// NewFlagSource creates a flag data source
//
// Example:
//
//	config.NewFlagSource(cmd.Flags(), map[string]string{
//	    "redis.main.addrs": "redis-addr",
//	}, 100)
func NewFlagSource(flags *pflag.FlagSet, bindings map[string]string, priority int) *FlagSource {
	return &FlagSource{
		flags:    flags,
		bindings: bindings,
		priority: priority,
	}
}

// Name data source name
func (s *FlagSource) Name() string {
	return "flags"
}

// Priority priority
func (s *FlagSource) Priority() int {
	return s.priority
}

// Load reads changed flags
func (s *FlagSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.flags == nil {
		return result, nil
	}

	for key, name := range s.bindings {
		f := s.flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			result[key] = sv.GetSlice()
			continue
		}
		result[key] = f.Value.String()
	}
	return result, nil
}
