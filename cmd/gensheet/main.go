// Command gensheet writes a sample source workbook for local development,
// usable with SOURCE_KIND=xlsx. The fixture mixes the quirks seen in the
// live feed: comma decimals, fixed-point coordinates, blanks, the (0, 0)
// sentinel, and rows with no positive values.
//
// Usage:
//
//	go run ./cmd/gensheet -out testdata/reports.xlsx -rows 40 -seed 1
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
)

type city struct {
	region string
	name   string
	lon    float64
	lat    float64
}

var cities = []city{
	{"Одеська", "Одеса", 30.7306393, 46.4702111},
	{"Львівська", "Львів", 24.0315921, 49.8429426},
	{"Київська", "Київ", 30.5233608, 50.4500336},
	{"Харківська", "Харків", 36.2303883, 49.9923181},
	{"Дніпропетровська", "Дніпро", 35.0461877, 48.4622362},
	{"Запорізька", "Запоріжжя", 35.1396084, 47.8507859},
}

func main() {
	out := flag.String("out", "reports.xlsx", "output workbook path")
	rows := flag.Int("rows", 30, "number of data rows")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	if err := run(*out, *rows, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(out string, rows int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []interface{}{domain.KeyDate, domain.KeyRegion, domain.KeyCity, domain.KeyLon, domain.KeyLat}
	for i := 1; i <= domain.ValueColumns; i++ {
		header = append(header, domain.ValueKey(i))
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for r := 0; r < rows; r++ {
		if err := setRow(f, sheet, r+2, sampleRow(rng)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(out); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	log.Printf("wrote %s: %d data rows", out, rows)
	return f.Close()
}

func sampleRow(rng *rand.Rand) []interface{} {
	c := cities[rng.Intn(len(cities))]
	date := fmt.Sprintf("%02d.05.2024", rng.Intn(28)+1)

	lon, lat := coordCell(rng, c.lon), coordCell(rng, c.lat)
	if rng.Intn(10) == 0 {
		// "no location recorded" sentinel
		lon, lat = "0", "0"
	}

	row := []interface{}{date, c.region, c.name, lon, lat}
	for i := 0; i < domain.ValueColumns; i++ {
		row = append(row, valueCell(rng))
	}
	return row
}

// coordCell renders a coordinate either as plain degrees (sometimes with a
// comma separator) or as a degrees-times-10^7 integer.
func coordCell(rng *rand.Rand, deg float64) string {
	switch rng.Intn(3) {
	case 0:
		return strconv.FormatInt(int64(deg*domain.DefaultCoordScale), 10)
	case 1:
		return strings.Replace(strconv.FormatFloat(deg, 'f', -1, 64), ".", ",", 1)
	default:
		return strconv.FormatFloat(deg, 'f', -1, 64)
	}
}

func valueCell(rng *rand.Rand) string {
	switch rng.Intn(5) {
	case 0:
		return "" // blank cell
	case 1:
		return "0"
	case 2:
		// comma-decimal value
		return fmt.Sprintf("%d,%d", rng.Intn(4), rng.Intn(10))
	default:
		return strconv.Itoa(rng.Intn(6))
	}
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	for col, v := range cells {
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
