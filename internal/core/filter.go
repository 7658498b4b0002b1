package core

import "strings"

// Blacklist is the eligibility policy for unused assets. Unlike usage
// classification it is cheap and the configuration may change between runs,
// so eligibility is recomputed every run.
type Blacklist struct {
	// Paths are excluded folder paths, compared by exact string match.
	// "/logos" protects /logos but not /logos/archive.
	Paths []string

	// Words are excluded filename substrings, case-sensitive. Empty
	// entries are ignored.
	Words []string
}

// ShouldDelete reports whether an unused asset at the given folder path and
// filename is eligible for backup/deletion.
func (b Blacklist) ShouldDelete(folderPath, filename string) bool {
	for _, path := range b.Paths {
		if folderPath == path {
			return false
		}
	}
	for _, word := range b.Words {
		if word == "" {
			continue
		}
		if strings.Contains(filename, word) {
			return false
		}
	}
	return true
}
