package decode

import (
	"fmt"
	"math"
	"slices"

	"github.com/klauspost/compress/zip"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// cveNoise are CVE record fields too heavy for the spreadsheet.
var cveNoise = []string{"protectionRules", "mitigationOption"}

// Vulnerabilities decodes the vulnerable-devices export: every JSON file
// of the archive contributes its items. The ip field is removed and the
// table holds one row per CVE, device columns first. CVE fields that
// collide with a device field get a cve_ prefix.
func Vulnerabilities(data []byte) (*model.Table, error) {
	zr, err := OpenZip(data)
	if err != nil {
		return nil, err
	}

	var items [][]byte
	for _, f := range zr.File {
		if !hasExt(f.Name, ".json") {
			continue
		}
		doc, err := ReadEntry(f)
		if err != nil {
			return nil, err
		}
		for _, item := range gjson.GetBytes(doc, "items").Array() {
			cleaned, err := cleanDevice([]byte(item.Raw))
			if err != nil {
				return nil, fmt.Errorf("decode: clean %s: %w", f.Name, err)
			}
			items = append(items, cleaned)
		}
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	var records []model.Record
	for _, raw := range items {
		item := gjson.ParseBytes(raw)
		var device model.Record
		Shallow(&device, item, "cveRecords")

		cves := item.Get("cveRecords")
		if !cves.IsArray() || len(cves.Array()) == 0 {
			if cves.Exists() && !cves.IsArray() {
				device.Set("cveRecords", Value(cves))
			}
			records = append(records, device)
			continue
		}
		for _, cve := range cves.Array() {
			row := device.Clone()
			if !cve.IsObject() {
				row.Set("cve", Value(cve))
				records = append(records, row)
				continue
			}
			cve.ForEach(func(k, v gjson.Result) bool {
				key := k.String()
				if slices.Contains(device.Keys, key) {
					key = "cve_" + key
				}
				row.Set(key, Value(v))
				return true
			})
			records = append(records, row)
		}
	}
	return model.NewTable(records), nil
}

func cleanDevice(raw []byte) ([]byte, error) {
	out, err := sjson.DeleteBytes(raw, "ip")
	if err != nil {
		return nil, err
	}
	n := len(gjson.GetBytes(out, "cveRecords").Array())
	for i := 0; i < n; i++ {
		for _, field := range cveNoise {
			out, err = sjson.DeleteBytes(out, fmt.Sprintf("cveRecords.%d.%s", i, field))
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Inventory decodes the endpoint inventory export from the first CSV or
// JSON entry of the archive. JSON items are flattened with dotted keys.
func Inventory(data []byte) (*model.Table, error) {
	zr, err := OpenZip(data)
	if err != nil {
		return nil, err
	}

	f := Find(zr.File, func(name string) bool { return hasExt(name, ".csv") || hasExt(name, ".json") })
	if f == nil {
		return nil, ErrNoDataFile
	}
	doc, err := ReadEntry(f)
	if err != nil {
		return nil, err
	}

	if hasExt(f.Name, ".csv") {
		return ReadCSV(doc)
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("decode: %s is not valid JSON", f.Name)
	}

	items := Items(doc)
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		var rec model.Record
		Flatten(&rec, "", item)
		records = append(records, rec)
	}
	return model.NewTable(records), nil
}

// WorkbenchNoise are alert columns dropped from the workbench sheet.
var WorkbenchNoise = []string{
	"schemaVersion", "workbenchLink", "alertProvider", "modelId", "modelType",
	"ownerIds", "impactScope", "matchedRules", "indicators", "campaign",
	"industry", "regionAndCountry", "createdBy", "totalIndicatorCount",
	"matchedIndicatorCount", "reportLink", "matchedIndicatorPatterns",
}

// Alerts tabulates workbench alerts, one row per alert.
func Alerts(items []gjson.Result) (*model.Table, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		var rec model.Record
		Shallow(&rec, item, WorkbenchNoise...)
		records = append(records, rec)
	}
	return model.NewTable(records), nil
}

// Products of the security configuration dashboard.
const (
	ProductServerWorkload   = "Server & Workload Protection"
	ProductStandardEndpoint = "Standard Endpoint Protection"
)

// Compliance reads the product's feature table from the security
// configuration archive at path and reports the share of endpoints with
// each feature enabled.
func Compliance(path, product string) (*model.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", path, err)
	}
	defer zr.Close()

	f := Find(zr.File, CSVEntry(product))
	if f == nil {
		return nil, fmt.Errorf("decode: no csv for %q in %s", product, path)
	}
	doc, err := ReadEntry(f)
	if err != nil {
		return nil, err
	}
	src, err := ReadCSV(doc)
	if err != nil {
		return nil, err
	}
	if len(src.Columns) > 3 {
		src.Drop(src.Columns[3:]...)
	}

	name, total, enabled := src.Index("Feature name"), src.Index("Total endpoints"), src.Index("Feature enabled")
	if name < 0 || total < 0 || enabled < 0 {
		return nil, fmt.Errorf("decode: %s: unexpected columns %v", f.Name, src.Columns)
	}

	out := &model.Table{Columns: []string{"Feature name", "Enable %"}}
	for _, row := range src.Rows {
		t, _ := Float(row[total])
		e, _ := Float(row[enabled])
		var pct any
		if t != 0 {
			pct = Round(e/t, 4)
		}
		out.Rows = append(out.Rows, []any{row[name], pct})
	}
	if out.Len() == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// IndexSample is how many leading rows an index average covers.
const IndexSample = 30

// Index averages the first sample values of column in the dashboard CSV
// whose name contains term, rounded to two places. Empty cells are
// skipped.
func Index(path, term, column string, sample int) (float64, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("decode: open %s: %w", path, err)
	}
	defer zr.Close()

	f := Find(zr.File, CSVEntry(term))
	if f == nil {
		return 0, fmt.Errorf("decode: no csv for %q in %s", term, path)
	}
	doc, err := ReadEntry(f)
	if err != nil {
		return 0, err
	}
	t, err := ReadCSV(doc)
	if err != nil {
		return 0, err
	}
	c := t.Index(column)
	if c < 0 {
		return 0, fmt.Errorf("decode: %s has no column %q", f.Name, column)
	}

	var sum float64
	var n int
	for i, row := range t.Rows {
		if i >= sample {
			break
		}
		if v, ok := Float(row[c]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("decode: %s: column %q has no values", f.Name, column)
	}
	return Round(sum/float64(n), 2), nil
}

// Round rounds half away from zero to places decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
