package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary holds the headline numbers for a dataset snapshot.
type Summary struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Builds           int       `json:"builds"`
	Orgs             int       `json:"orgs"`
	WithPackages     int       `json:"builds_with_packages"`
	WithFilesystem   int       `json:"builds_with_fs_customizations"`
	WithPayloadRepos int       `json:"builds_with_custom_repos"`
}

// Summarize computes the headline numbers for a dataset.
func Summarize(d Dataset) Summary {
	s := Summary{Builds: len(d)}
	if tr, ok := d.TimeRange(); ok {
		s.Start, s.End = tr.Start, tr.End
	}
	orgs := make(map[string]struct{})
	for i := range d {
		r := &d[i]
		orgs[r.OrgID] = struct{}{}
		if len(r.Packages) > 0 {
			s.WithPackages++
		}
		if len(r.Filesystem) > 0 {
			s.WithFilesystem++
		}
		if len(r.PayloadRepositories) > 0 {
			s.WithPayloadRepos++
		}
	}
	s.Orgs = len(orgs)
	return s
}

// String renders the summary as the human-readable report block.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("Summary\n")
	b.WriteString("=======\n\n")
	fmt.Fprintf(&b, "Period: %s - %s\n\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Total builds: %d\n", s.Builds)
	fmt.Fprintf(&b, "- Number of users: %d\n", s.Orgs)
	fmt.Fprintf(&b, "- Builds with packages: %d\n", s.WithPackages)
	fmt.Fprintf(&b, "- Builds with filesystem customizations: %d\n", s.WithFilesystem)
	fmt.Fprintf(&b, "- Builds with custom repos: %d", s.WithPayloadRepos)
	return b.String()
}

// NameCount pairs a categorical value with its occurrence count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopPackages counts how many builds selected each package and returns the
// top limit entries by count. A package appearing several times in one
// build's list is counted once for that build.
func TopPackages(d Dataset, limit int) []NameCount {
	counts := make(map[string]int)
	for i := range d {
		seen := make(map[string]struct{}, len(d[i].Packages))
		for _, pkg := range d[i].Packages {
			if _, ok := seen[pkg]; ok {
				continue
			}
			seen[pkg] = struct{}{}
			counts[pkg]++
		}
	}
	return topCounts(counts, limit)
}

// ImageTypeCounts returns per-image-type build counts, most used first.
func ImageTypeCounts(d Dataset) []NameCount {
	counts := make(map[string]int)
	for i := range d {
		counts[d[i].ImageType]++
	}
	return topCounts(counts, len(counts))
}

// TopAccounts returns the accounts with the most builds, resolving account
// numbers to display names through the directory. Accounts missing from the
// directory keep the raw account number. An account number matching more
// than one directory entry returns an AmbiguousAccountError.
func TopAccounts(d Dataset, dir Directory, limit int) ([]NameCount, error) {
	counts := make(map[string]int)
	for i := range d {
		counts[d[i].AccountNumber]++
	}
	top := topCounts(counts, limit)
	for i := range top {
		name, err := dir.NameForAccount(top[i].Name)
		if err != nil {
			return nil, err
		}
		if name != "" {
			top[i].Name = name
		}
	}
	return top, nil
}

func topCounts(counts map[string]int, limit int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NameCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
