package exportsvc

import (
	"encoding/base64"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachaupg/shuletrack/core"
	emailsvc "github.com/gachaupg/shuletrack/services/email"
)

func fixedNow(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = time.Now })
}

func studentsTable() Table {
	return Table{
		Name:    "students",
		Title:   "Students",
		Headers: []string{"First Name", "Grade", "Notes", "is_active"},
		Rows: []map[string]interface{}{
			{"first_name": "Wanjiru", "grade": "Grade 4", "Notes": `says "hi", waves`, "is_active": true},
			{"first_name": "Otieno", "grade": nil},
		},
	}
}

func TestValue(t *testing.T) {
	row := map[string]interface{}{
		"date_of_birth": "2014-05-01",
		"Custom Col":    "exact",
		"capacity":      float64(30),
		"is_active":     false,
	}
	tests := []struct {
		header string
		want   string
	}{
		{header: "Date Of Birth", want: "2014-05-01"},
		{header: "Custom Col", want: "exact"},
		{header: "Capacity", want: "30"},
		{header: "Is Active", want: "No"},
		{header: "Missing", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(row, tt.header))
		})
	}
}

func TestTable_RenderCSV(t *testing.T) {
	fixedNow(t)

	art, err := studentsTable().Render(FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "students_2024-03-09.csv", art.Name)
	assert.Equal(t, "text/csv; charset=utf-8", art.ContentType)
	want := `"First Name","Grade","Notes","is_active"` + "\r\n" +
		`"Wanjiru","Grade 4","says ""hi"", waves","Yes"` + "\r\n" +
		`"Otieno","","",""` + "\r\n"
	assert.Equal(t, want, string(art.Data))
}

func TestTable_RenderHTML(t *testing.T) {
	fixedNow(t)

	tests := []struct {
		format   Format
		wantName string
		wantType string
		wantMark string
	}{
		{format: FormatPDF, wantName: "students_2024-03-09.html", wantType: "text/html; charset=utf-8", wantMark: "window.print()"},
		{format: FormatDoc, wantName: "students_2024-03-09.doc", wantType: "application/msword", wantMark: "urn:schemas-microsoft-com:office:word"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			art, err := studentsTable().Render(tt.format)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, art.Name)
			assert.Equal(t, tt.wantType, art.ContentType)
			html := string(art.Data)
			assert.Contains(t, html, tt.wantMark)
			assert.Contains(t, html, "<th>First Name</th>")
			assert.Contains(t, html, "<td>Wanjiru</td>")
			assert.Contains(t, html, "says &#34;hi&#34;, waves")
			assert.Contains(t, html, "2024-03-09 14:30")
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"csv", "PDF", " doc "} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	fixedNow(t)
	art, err := studentsTable().Render(FormatCSV)
	require.NoError(t, err)

	fp, err := Write(filepath.Join(t.TempDir(), "out"), art)
	require.NoError(t, err)
	data, err := os.ReadFile(fp)
	require.NoError(t, err)
	assert.Equal(t, art.Data, data)
	assert.True(t, strings.HasSuffix(fp, "students_2024-03-09.csv"))
}

func TestMail(t *testing.T) {
	fixedNow(t)
	conf := core.NewTestConfig("http://localhost/api")
	svc := emailsvc.NewConsoleService(conf, nil)

	art, err := studentsTable().Render(FormatCSV)
	require.NoError(t, err)
	require.NoError(t, Mail(svc, art, "Students", 2, mail.Address{Address: "head@shule.test"}))

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "Students export", msg.Subject)
	assert.Contains(t, msg.TextContent, `Your "Students" export is attached (students_2024-03-09.csv, 2 rows).`)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "students_2024-03-09.csv", msg.Attachments[0].Filename)
	decoded, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	require.NoError(t, err)
	assert.Equal(t, art.Data, decoded)

	assert.Error(t, Mail(svc, art, "Students", 2))
}
