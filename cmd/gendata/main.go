// Command gendata writes a synthetic provider CSV fixture with a known group
// structure, for exercising the analyze command and the test suites. Each
// group of regions follows a distinct daily-increment curve, so a correct
// analysis should recover the groups.
//
// Usage:
//
//	go run ./cmd/gendata -regions 9 -groups 3 -days 120 -out testdata/panel.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"golang.org/x/exp/rand"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

var startDate = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	regions := flag.Int("regions", 9, "number of regions")
	groups := flag.Int("groups", 3, "number of region groups with distinct curves")
	days := flag.Int("days", 120, "number of consecutive days")
	seed := flag.Uint64("seed", 1, "noise seed")
	noise := flag.Float64("noise", 0.02, "per-cell noise scale")
	gapEvery := flag.Int("gap-every", 0, "blank out every Nth tests cell (0 disables)")
	out := flag.String("out", "", "output path (stdout if empty)")
	flag.Parse()

	if *regions < 2 || *groups < 1 || *groups > *regions || *days < 3 {
		flag.Usage()
		return fmt.Errorf("invalid dimensions: regions=%d groups=%d days=%d", *regions, *groups, *days)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	cw := csv.NewWriter(w)
	header := []string{"date", "region"}
	for _, v := range domain.Variables() {
		header = append(header, string(v))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	perGroup := (*regions + *groups - 1) / *groups

	rows := 0
	for ri := 0; ri < *regions; ri++ {
		region := fmt.Sprintf("region-%02d", ri+1)
		group := ri / perGroup
		cum := make(map[domain.Variable]float64)
		for d := 0; d < *days; d++ {
			record := []string{
				startDate.AddDate(0, 0, d).Format("2006-01-02"),
				region,
			}
			for _, v := range domain.Variables() {
				value := curve(group, d, *days) + *noise*rng.NormFloat64()
				if v.Cumulative() {
					cum[v] += value
					value = cum[v]
				}
				cell := strconv.FormatFloat(value, 'g', -1, 64)
				// Interior gaps only; the cleaner rejects boundary gaps.
				if v == domain.VarTests && *gapEvery > 0 &&
					d > 0 && d < *days-1 && (rows+d)%*gapEvery == 0 {
					cell = ""
				}
				record = append(record, cell)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		rows += *days
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	log.Printf("wrote %d rows (%d regions x %d days)", rows, *regions, *days)
	return nil
}

// curve gives each group a distinct increment shape; z-scoring removes level
// and scale, so the shapes must differ in form, not just magnitude.
func curve(group, day, days int) float64 {
	t := float64(day) / float64(days)
	switch group % 4 {
	case 0:
		return 1 + 5*t
	case 1:
		return 6 - 5*t
	case 2:
		return 1 + 5*math.Sin(math.Pi*t)
	default:
		return 3.5 + 2.5*math.Sin(2*math.Pi*t)
	}
}
