package dataset

import (
	"fmt"
	"regexp"
)

// Account is one entry of the external org directory used for filtering and
// name resolution.
type Account struct {
	AccountNumber string `json:"accountNumber"`
	OrgID         string `json:"org_id"`
	Name          string `json:"name"`
}

// Directory is the org directory supplied alongside a data dump.
type Directory []Account

// AmbiguousAccountError reports an account number that resolves to more
// than one directory entry. Callers must treat this as a hard failure.
type AmbiguousAccountError struct {
	AccountNumber string
	Matches       int
}

func (e *AmbiguousAccountError) Error() string {
	return fmt.Sprintf("account number %q matches %d directory entries", e.AccountNumber, e.Matches)
}

// NameForAccount resolves an account number to its display name. It returns
// "" when the account is not in the directory and an AmbiguousAccountError
// when more than one entry matches.
func (dir Directory) NameForAccount(accountNumber string) (string, error) {
	var name string
	matches := 0
	for i := range dir {
		if dir[i].AccountNumber == accountNumber {
			name = dir[i].Name
			matches++
		}
	}
	if matches > 1 {
		return "", &AmbiguousAccountError{AccountNumber: accountNumber, Matches: matches}
	}
	return name, nil
}

// MatchOrgIDs returns the org IDs of directory entries whose name matches
// any of the patterns. A pattern matches at the start of the name,
// case-insensitively. Empty patterns are skipped.
func MatchOrgIDs(dir Directory, patterns []string) ([]string, error) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		for i := range dir {
			if !re.MatchString(dir[i].Name) {
				continue
			}
			id := dir[i].OrgID
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FilterOrgs returns the records whose org ID is not in the exclusion list.
func FilterOrgs(d Dataset, orgIDs []string) Dataset {
	drop := make(map[string]struct{}, len(orgIDs))
	for _, id := range orgIDs {
		drop[id] = struct{}{}
	}
	out := make(Dataset, 0, len(d))
	for i := range d {
		if _, ok := drop[d[i].OrgID]; ok {
			continue
		}
		out = append(out, d[i])
	}
	return out
}

// FilterAccounts removes records whose account belongs to a directory entry
// with a name matching any of the patterns. With no directory or no
// patterns the dataset is returned unchanged.
func FilterAccounts(d Dataset, dir Directory, patterns []string) (Dataset, error) {
	if len(dir) == 0 || len(patterns) == 0 {
		return d, nil
	}
	drop := make(map[string]struct{})
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		for i := range dir {
			if re.MatchString(dir[i].Name) {
				drop[dir[i].AccountNumber] = struct{}{}
			}
		}
	}
	out := make(Dataset, 0, len(d))
	for i := range d {
		if _, ok := drop[d[i].AccountNumber]; ok {
			continue
		}
		out = append(out, d[i])
	}
	return out, nil
}
