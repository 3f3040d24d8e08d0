// Package clix holds flag parsing helpers shared by the CLI commands.
package clix

import (
	"strings"

	"github.com/spf13/pflag"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseList splits a comma separated flag value, trimming blanks. Both
// "--vulnerability a,b" and repeated "--vulnerability a --vulnerability b"
// are accepted when the flag is a string slice.
func ParseList(flags *pflag.FlagSet, name string) []string {
	var raw []string
	if f := flags.Lookup(name); f != nil && f.Value.Type() == "stringSlice" {
		raw, _ = flags.GetStringSlice(name)
	} else {
		s, _ := flags.GetString(name)
		raw = strings.Split(s, ",")
	}
	var out []string
	for _, v := range raw {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
