package clickhouse

import (
	"fmt"
	"strings"
)

// StringSliceFlag accepts repeated values as well as comma separated lists.
type StringSliceFlag []string

func (s *StringSliceFlag) String() string {
	return fmt.Sprintf("%v", []string(*s))
}

func (s *StringSliceFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			*s = append(*s, trimmed)
		}
	}
	return nil
}

func (s *StringSliceFlag) Type() string {
	return "strings"
}

// Password hides its value when printed or logged.
type Password string

func (p *Password) String() string { return "..." }
func (p *Password) Expose() string { return string(*p) }
func (p *Password) Set(value string) error {
	*p = Password(value)
	return nil
}
func (p *Password) Type() string { return "password" }
