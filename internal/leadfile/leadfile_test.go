package leadfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-qualify/internal/model"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestMapRow(t *testing.T) {
	t.Parallel()

	row := MapRow([]string{"First Name", " ", "Phone"}, []string{" Ann ", "ignored"})
	assert.Equal(t, "Ann", row["First Name"])
	assert.Equal(t, "", row["Phone"])
	assert.Len(t, row, 2)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := "\ufefffirst_name,last_name,phone\nAnn,Lee,(555) 123-0000\n,,\nBo,Diaz,5551230001\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ann", rows[0]["first_name"])
	assert.Equal(t, "5551230001", rows[1]["phone"])
}

func TestReadCSV_Empty(t *testing.T) {
	t.Parallel()

	rows, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSV_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("a\n1\n"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,mobile\nAnn Lee,5551230000\n"), 0o644))

	rows, err := ReadFile(context.Background(), csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	xlsxPath := createTestXLSX(t, [][]string{
		{"First Name", "Last Name", "Business"},
		{"Ann", "Lee", "Lee Plumbing"},
		{"", "", ""},
		{"Bo", "Diaz", "Diaz HVAC"},
	})
	rows, err = ReadFile(context.Background(), xlsxPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Diaz HVAC", rows[1]["Business"])

	_, err = ReadFile(context.Background(), filepath.Join(dir, "leads.pdf"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, [][]string{{"a"}})
	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Nope"})
	assert.ErrorContains(t, err, "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")
}

func TestToRawLead(t *testing.T) {
	t.Parallel()

	row := Row{
		"firstName": "ANN",
		"last_name": "lee",
		"mobile":    "(555) 123-0000",
		"Email":     "Ann@LeePlumbing.com",
		"business":  "Lee Plumbing",
		"job_title": "Owner",
		"zipcode":   "78701",
		"state":     "tx",
		"sic_code":  "1711",
	}

	lead := ToRawLead(row, model.LeadSource("csv"))
	assert.Equal(t, "Ann", lead.FirstName)
	assert.Equal(t, "Lee", lead.LastName)
	assert.Equal(t, "+15551230000", lead.Phone)
	assert.Equal(t, "ann@leeplumbing.com", lead.Email)
	assert.Equal(t, "Lee Plumbing", lead.Company)
	assert.Equal(t, "Owner", lead.Title)
	assert.Equal(t, "78701", lead.Zip)
	assert.Equal(t, "TX", lead.State)
	assert.Equal(t, model.LeadSource("csv"), lead.Source)
	assert.Equal(t, map[string]any{"sic_code": "1711"}, lead.Extra)
}

func TestToRawLead_FullName(t *testing.T) {
	t.Parallel()

	lead := ToRawLead(Row{"Name": "Mary Ann McDonald"}, "api")
	assert.Equal(t, "Mary", lead.FirstName)
	assert.Equal(t, "Ann McDonald", lead.LastName)
	assert.Nil(t, lead.Extra)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ann", NormalizeName("ANN"))
	assert.Equal(t, "Van Der Berg", NormalizeName("van  der berg"))
	assert.Equal(t, "McDonald", NormalizeName("McDonald"))
	assert.Equal(t, "", NormalizeName("  "))
}

func TestCleanPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"(555) 123-0000", "+15551230000"},
		{"1-555-123-0000", "+15551230000"},
		{"+44 20 7946 0958", "+442079460958"},
		{"n/a", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanPhone(tt.in))
		})
	}
}

func TestQuickValidatePhone(t *testing.T) {
	t.Parallel()

	c := QuickValidatePhone("512-555-2368")
	assert.True(t, c.IsValid)
	assert.Equal(t, "+15125552368", c.Formatted)
	assert.Equal(t, model.PhoneUnknown, c.LikelyType)

	assert.True(t, QuickValidatePhone("15125552368").IsValid)
	assert.False(t, QuickValidatePhone("25125552368").IsValid)
	assert.False(t, QuickValidatePhone("555-0100").IsValid)
	assert.False(t, QuickValidatePhone("(512) 555-0142").IsValid, "fictional range")
}
