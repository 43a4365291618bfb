package app

import "os"

// defaultIsTerminal reports whether stdin looks interactive. Stat
// failures count as interactive so a broken pipe never silently eats a
// prompt.
func defaultIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}

var isTerminal = defaultIsTerminal
