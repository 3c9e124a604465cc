// Package exportsvc renders tabular data as downloadable artifacts (CSV, printable HTML, Word HTML).
package exportsvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltmpl "html/template"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
	appfs "github.com/gachaupg/shuletrack/fs"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf" // printable HTML, printed to PDF by the browser
	FormatDoc Format = "doc"
)

const templatesDir = "templates/export"

var (
	Formats = []Format{FormatCSV, FormatPDF, FormatDoc}

	nowFunc = time.Now

	formatSpecs = map[Format]struct {
		ext         string
		contentType string
		template    string
	}{
		FormatCSV: {ext: "csv", contentType: "text/csv; charset=utf-8"},
		FormatPDF: {ext: "html", contentType: "text/html; charset=utf-8", template: "print.gohtml"},
		FormatDoc: {ext: "doc", contentType: "application/msword", template: "word.gohtml"},
	}

	tmplOnce  sync.Once
	templates map[Format]*htmltmpl.Template
	tmplErr   error
)

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatSpecs[f]; !ok {
		return "", errors.Errorf("%q: unknown export format (csv, pdf, doc)", s)
	}
	return f, nil
}

type (
	// Table is a dataset to export. Rows are looked up by header, see Value.
	Table struct {
		Name    string // logical name used for the file name, e.g. "students"
		Title   string
		Headers []string
		Rows    []map[string]interface{}
	}

	Artifact struct {
		Name        string
		ContentType string
		Data        []byte
	}

	htmlData struct {
		Title       string
		GeneratedAt string
		Headers     []string
		Rows        [][]string
	}
)

// FileName returns "<name>_<YYYY-MM-DD>.<ext>".
func FileName(name string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", name, at.Format("2006-01-02"), formatSpecs[f].ext)
}

// Value returns the display value of header in row: the normalized key
// ("Date Of Birth" -> "date_of_birth") first, then the header as is, then "".
func Value(row map[string]interface{}, header string) string {
	if val, ok := row[core.NormalizeKey(header)]; ok {
		return stringify(val)
	}
	if val, ok := row[header]; ok {
		return stringify(val)
	}
	return ""
}

func (t Table) Render(f Format) (Artifact, error) {
	spec, ok := formatSpecs[f]
	if !ok {
		return Artifact{}, errors.Errorf("%q: unknown export format", f)
	}

	now := nowFunc()
	name := t.Name
	if name == "" {
		name = "export"
	}
	art := Artifact{Name: FileName(name, f, now), ContentType: spec.contentType}

	if f == FormatCSV {
		art.Data = t.csv()
		return art, nil
	}

	tmpl, err := template(f)
	if err != nil {
		return Artifact{}, err
	}
	data := htmlData{
		Title:       t.title(),
		GeneratedAt: now.Format("2006-01-02 15:04"),
		Headers:     t.Headers,
		Rows:        t.matrix(),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Artifact{}, errors.Wrapf(err, "exportsvc: rendering %s", f)
	}
	art.Data = buf.Bytes()
	return art, nil
}

// Write saves the artifact in dir and returns its path.
func Write(dir string, art Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "exportsvc.Write")
	}
	fp := filepath.Join(dir, art.Name)
	if err := os.WriteFile(fp, art.Data, 0o644); err != nil {
		return "", errors.Wrap(err, "exportsvc.Write")
	}
	return fp, nil
}

func (t Table) title() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

func (t Table) matrix() [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(t.Headers))
		for _, h := range t.Headers {
			cells = append(cells, Value(row, h))
		}
		rows = append(rows, cells)
	}
	return rows
}

// csv quotes every field and doubles embedded quotes; records end with CRLF.
func (t Table) csv() []byte {
	var buf bytes.Buffer
	writeRecord := func(fields []string) {
		for i, fld := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(fld, `"`, `""`))
			buf.WriteByte('"')
		}
		buf.WriteString("\r\n")
	}

	writeRecord(t.Headers)
	for _, cells := range t.matrix() {
		writeRecord(cells)
	}
	return buf.Bytes()
}

func template(f Format) (*htmltmpl.Template, error) {
	tmplOnce.Do(func() {
		templates = make(map[Format]*htmltmpl.Template)
		for format, spec := range formatSpecs {
			if spec.template == "" {
				continue
			}
			tmpl, err := htmltmpl.ParseFS(appfs.FS, path.Join(templatesDir, spec.template))
			if err != nil {
				tmplErr = errors.Wrap(err, "exportsvc: parsing templates")
				return
			}
			templates[format] = tmpl
		}
	})
	if tmplErr != nil {
		return nil, tmplErr
	}
	return templates[f], nil
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return v.String()
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, "; ")
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
