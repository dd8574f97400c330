package display

import (
	"encoding/json"
	"os"
)

// MarshalJSON marshals JSON with pretty formatting when stdout is a terminal
// and compact formatting when it is piped
func MarshalJSON(v interface{}) ([]byte, error) {
	if isTerminal(os.Stdout) {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
