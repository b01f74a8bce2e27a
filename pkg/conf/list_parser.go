package conf

import (
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
)

// stringListDelimiter separates elements of a list flag given as one string.
const stringListDelimiter = ","

// StringListVar is an implementation of kingpin.Value interface.
// It allows to parse a delimited list of strings and accumulate
// values from multiple flag occurrences into one slice.
type StringListVar []string

// Set is kingpin.Value interface implementation. It appends new elements to
// slice of strings.
func (s *StringListVar) Set(value string) error {
	parsedList := strings.Split(value, stringListDelimiter)
	*s = append(*s, parsedList...)
	return nil
}

// Get is kingpin.Getter interface implementation. It returns gathered strings.
func (s *StringListVar) Get() interface{} {
	return []string(*s)
}

// String is kingpin.Value interface implementation.
func (s *StringListVar) String() string {
	return strings.Join(*s, stringListDelimiter)
}

// IsCumulative allows to pass flag multiple times.
func (s *StringListVar) IsCumulative() bool {
	return true
}

// StringList registers StringListVar value on given kingpin setting.
func StringList(s kingpin.Settings) (target *[]string) {
	target = new([]string)
	s.SetValue((*StringListVar)(target))
	return
}
