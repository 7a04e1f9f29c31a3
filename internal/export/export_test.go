package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

// readSheet decodes a written workbook and returns the sheet list and the rows
// of ContactsSheet.
func readSheet(t *testing.T, data []byte) ([]string, [][]string) {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return f.GetSheetList(), rows
}

func TestRows(t *testing.T) {
	tests := []struct {
		name     string
		contacts []model.Contact
		want     [][]string
	}{
		{
			name:     "empty collection is header only",
			contacts: nil,
			want:     [][]string{{"Name", "Phone"}},
		},
		{
			name:     "missing fields use placeholders",
			contacts: []model.Contact{{}},
			want:     [][]string{{"Name", "Phone"}, {"No Name", "No Phone"}},
		},
		{
			name: "order is preserved",
			contacts: []model.Contact{
				{Name: "Ada", Phone: "+44 1"},
				{Name: "Grace"},
				{Phone: "+1 2"},
			},
			want: [][]string{
				{"Name", "Phone"},
				{"Ada", "+44 1"},
				{"Grace", "No Phone"},
				{"No Name", "+1 2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rows(tt.contacts))
		})
	}
}

func TestWrite_EmptyCollection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	sheets, rows := readSheet(t, buf.Bytes())
	assert.Equal(t, []string{SheetName}, sheets)
	assert.Equal(t, [][]string{{"Name", "Phone"}}, rows)
}

func TestWrite_Contacts(t *testing.T) {
	contacts := []model.Contact{
		{Name: "Ada Lovelace", Phone: "+44 20 7946 0000"},
		{},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, contacts))

	_, rows := readSheet(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"Name", "Phone"},
		{"Ada Lovelace", "+44 20 7946 0000"},
		{"No Name", "No Phone"},
	}, rows)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_FailureIsExportFailed(t *testing.T) {
	err := Write(failingWriter{}, []model.Contact{{Name: "x"}})
	assert.ErrorIs(t, err, apperror.ErrExport)
}
