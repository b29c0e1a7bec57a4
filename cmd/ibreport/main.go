// Command ibreport generates a usage report from an image builder data
// dump. It prints a text summary plus the classifier results and exports
// the numeric series as CSV files for downstream plotting.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/footprint"
	"github.com/osbuild/ibmetrics/pkg/ingest"
	"github.com/osbuild/ibmetrics/pkg/metrics"
	"github.com/osbuild/ibmetrics/pkg/observability"
)

var (
	startFlag    = flag.String("start", "", "Start date (RFC 3339 or YYYY-MM-DD); older records are ignored")
	endFlag      = flag.String("end", "", "End date (RFC 3339 or YYYY-MM-DD); newer records are ignored")
	userInfo     = flag.String("userinfo", "", "JSON file with the org directory (account number, org id, name)")
	userFilter   = flag.String("userfilter", "", "File with name patterns to remove from the data, one per line")
	footprintMap = flag.String("footprint-map", "", "YAML file overriding the built-in image-type to footprint mapping")
	cacheDir     = flag.String("cache-dir", ingest.DefaultCacheDir(), "Directory for the parsed-dataset cache")
	noCache      = flag.Bool("no-cache", false, "Bypass the parsed-dataset cache")
	csvDir       = flag.String("csv-dir", "", "Directory to export the numeric series as CSV files")
	minBuilds    = flag.Int("min-builds", 3, "Repeat-org threshold: builds within the rolling period")
	periodDays   = flag.Int("period-days", 30, "Repeat-org rolling period in days")
	minDays      = flag.Int("min-days", 3, "Active-org threshold: distinct build days")
	recentLimit  = flag.Int("recent-limit", 30, "Active-org recency limit in days")
	logLevel     = flag.String("log-level", "warning", "Log level")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <dump file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := observability.NewLogger(*logLevel, false, os.Stderr)
	if err := run(flag.Arg(0), log); err != nil {
		log.WithError(err).Fatal("report failed")
	}
}

func run(dumpPath string, log *logrus.Logger) error {
	ctx := context.Background()

	ds, err := loadDataset(ctx, dumpPath, log)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d records\n", len(ds))

	var dir dataset.Directory
	if *userInfo != "" {
		data, err := os.ReadFile(*userInfo)
		if err != nil {
			return fmt.Errorf("reading user info: %w", err)
		}
		if err := json.Unmarshal(data, &dir); err != nil {
			return fmt.Errorf("parsing user info: %w", err)
		}
	}

	if *userFilter != "" {
		data, err := os.ReadFile(*userFilter)
		if err != nil {
			return fmt.Errorf("reading user filter: %w", err)
		}
		patterns := strings.Split(string(data), "\n")
		ds, err = dataset.FilterAccounts(ds, dir, patterns)
		if err != nil {
			return err
		}
		fmt.Printf("%d records after user filtering\n", len(ds))
	}

	tr, ok := ds.TimeRange()
	if !ok {
		return fmt.Errorf("dataset has no timestamped records")
	}
	start, end := tr.Start, tr.End
	if *startFlag != "" {
		if start, err = parseDate(*startFlag); err != nil {
			return err
		}
	}
	if *endFlag != "" {
		if end, err = parseDate(*endFlag); err != nil {
			return err
		}
	}
	ds = ds.SliceTime(start, end)

	fmt.Println()
	fmt.Println(dataset.Summarize(ds))
	fmt.Println()

	printTopPackages(ds, 20)
	printImageTypes(ds)
	if err := printTopAccounts(ds, dir, 20); err != nil {
		return err
	}
	if err := printFootprints(ds); err != nil {
		return err
	}

	if err := printClassifiers(ds); err != nil {
		return err
	}
	if err := printWeeklyUsers(ds, start); err != nil {
		return err
	}

	if *csvDir != "" {
		if err := exportSeries(ds, *csvDir); err != nil {
			return err
		}
		fmt.Printf("Exported series to %s\n", *csvDir)
	}
	return nil
}

// loadDataset reads the dump, going through the SQLite cache unless it is
// disabled.
func loadDataset(ctx context.Context, dumpPath string, log *logrus.Logger) (dataset.Dataset, error) {
	if *noCache {
		return ingest.ReadDumpFile(dumpPath, log)
	}

	cache, err := ingest.OpenCache(*cacheDir)
	if err != nil {
		log.WithError(err).Warn("dataset cache unavailable, parsing dump")
		return ingest.ReadDumpFile(dumpPath, log)
	}
	defer cache.Close()

	key := filepath.Base(dumpPath)
	if ds, ok, err := cache.Get(ctx, key); err != nil {
		log.WithError(err).Warn("dataset cache read failed, parsing dump")
	} else if ok {
		log.WithField("key", key).Info("using cached dataset")
		return ds, nil
	}

	ds, err := ingest.ReadDumpFile(dumpPath, log)
	if err != nil {
		return nil, err
	}
	if err := cache.Put(ctx, key, ds); err != nil {
		log.WithError(err).Warn("caching dataset failed")
	}
	return ds, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func printTopPackages(ds dataset.Dataset, limit int) {
	fmt.Println("## Most frequently selected packages")
	for i, pkg := range dataset.TopPackages(ds, limit) {
		fmt.Printf("%3d. %-40s %5d\n", i+1, pkg.Name, pkg.Count)
	}
	fmt.Println("---------------------------------")
}

func printImageTypes(ds dataset.Dataset) {
	fmt.Println("## Image types")
	for i, it := range dataset.ImageTypeCounts(ds) {
		fmt.Printf("%3d. %-40s %5d\n", i+1, it.Name, it.Count)
	}
	fmt.Println("---------------------------------")
}

func printTopAccounts(ds dataset.Dataset, dir dataset.Directory, limit int) error {
	accounts, err := dataset.TopAccounts(ds, dir, limit)
	if err != nil {
		return err
	}
	fmt.Println("## Biggest orgs")
	for i, acc := range accounts {
		fmt.Printf("%3d. %-40s %5d\n", i+1, acc.Name, acc.Count)
	}
	fmt.Println("------------")
	return nil
}

// loadMapper returns the built-in footprint mapping, or the one loaded from
// path when it is non-empty. A requested override that cannot be loaded is
// an error, never a silent fallback to the default table.
func loadMapper(path string) (footprint.Mapper, error) {
	if path == "" {
		return footprint.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening footprint map: %w", err)
	}
	defer f.Close()
	return footprint.Load(f)
}

func printFootprints(ds dataset.Dataset) error {
	mapper, err := loadMapper(*footprintMap)
	if err != nil {
		return err
	}
	fmt.Println("## Footprints")
	for i, fp := range dataset.ImageTypeCounts(mapper.Apply(ds)) {
		fmt.Printf("%3d. %-40s %5d\n", i+1, fp.Name, fp.Count)
	}
	fmt.Println("------------")
	return nil
}

func printClassifiers(ds dataset.Dataset) error {
	repeat, err := metrics.RepeatOrgs(ds, *minBuilds, time.Duration(*periodDays)*metrics.Day)
	if err != nil {
		return err
	}
	fmt.Printf("Repeat orgs (>= %d builds in %d days): %d\n", *minBuilds, *periodDays, len(repeat))

	active, err := metrics.ActiveOrgs(ds, *minDays, *recentLimit, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Active orgs (>= %d build days, recent within %d days): %d\n", *minDays, *recentLimit, len(active))
	return nil
}

func printWeeklyUsers(ds dataset.Dataset, start time.Time) error {
	anchor := start.UTC()
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	for anchor.Weekday() != time.Monday {
		anchor = anchor.AddDate(0, 0, -1)
	}

	cohorts, err := metrics.WeeklyCohorts(ds, anchor)
	if err != nil {
		return err
	}
	fmt.Println("## Weekly users")
	for _, c := range cohorts {
		fmt.Printf("week of %s: %4d users, %4d new\n", c.Start.Format("2006-01-02"), c.Orgs, c.NewOrgs)
	}
	return nil
}

// exportSeries writes the monthly and ratio series as CSV files. Plotting
// proper lives outside this tool; CSV keeps the series consumable.
func exportSeries(ds dataset.Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating CSV dir: %w", err)
	}

	type monthly struct {
		name string
		f    func(dataset.Dataset) ([]int, []time.Time, error)
	}
	series := []monthly{
		{"monthly_users", func(d dataset.Dataset) ([]int, []time.Time, error) {
			return metrics.DistinctPerMonth(d, dataset.ByOrg)
		}},
		{"monthly_builds", func(d dataset.Dataset) ([]int, []time.Time, error) {
			return metrics.DistinctPerMonth(d, dataset.ByJob)
		}},
		{"monthly_new_users", metrics.NewOrgsPerMonth},
		{"monthly_returning_users", metrics.ReturningOrgsPerMonth},
	}
	for _, sp := range series {
		counts, starts, err := sp.f(ds)
		if err != nil {
			return err
		}
		rows := make([][]string, len(counts))
		for i := range counts {
			rows[i] = []string{starts[i].Format("2006-01-02"), strconv.Itoa(counts[i])}
		}
		if err := writeCSV(filepath.Join(dir, sp.name+".csv"), []string{"month", "count"}, rows); err != nil {
			return err
		}
	}

	ratios, ends, err := metrics.DAUOverMAU(ds)
	if err != nil {
		return fmt.Errorf("computing DAU/MAU series: %w", err)
	}
	smoothed := metrics.ExpandingMean(ratios)
	rows := make([][]string, len(ratios))
	for i := range ratios {
		rows[i] = []string{
			ends[i].Format("2006-01-02"),
			strconv.FormatFloat(ratios[i], 'f', 6, 64),
			strconv.FormatFloat(smoothed[i], 'f', 6, 64),
		}
	}
	return writeCSV(filepath.Join(dir, "dau_over_mau.csv"), []string{"day", "ratio", "expanding_mean"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}
