package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTrimsAndKeysByHeader(t *testing.T) {
	input := "\ufeffITNr , SNr,SuSVorn\n  IT-01 ,SN1, Max \n,SN2,\nIT-03,SN3\n"

	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "IT-01", records[0].Get("ITNr"))
	assert.Equal(t, "Max", records[0].Get("SuSVorn"))
	assert.Equal(t, "", records[1].Get("ITNr"))
	assert.Equal(t, "", records[2].Get("SuSVorn"))
	assert.Equal(t, "", records[0].Get("Missing"))
}

func TestReadSemicolonSeparated(t *testing.T) {
	records, err := Read(strings.NewReader("ITNr;SuSNachn\nIT-9;Müller, Jr\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Müller, Jr", records[0].Get("SuSNachn"))
}

func TestReadEmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestRecordBlank(t *testing.T) {
	assert.True(t, Record{"a": " ", "b": ""}.Blank())
	assert.False(t, Record{"a": "x"}.Blank())
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, FormatCSV, []string{"ITNr", "Rückgabe"}, [][]string{{"IT-1", ""}, {"IT-2", "x"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), utf8BOM))

	records, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "IT-2", records[1].Get("ITNr"))
	assert.Equal(t, "x", records[1].Get("Rückgabe"))
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	header := []string{"ITNr", "SuSNachn", "AnschJahr", "Rückgabe"}
	rows := [][]string{
		{"IT-1", "Müller", "2021", ""},
		{"IT-2", "Özdemir", "0042", "x"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, header, rows))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), zipMagic))

	records, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Müller", records[0].Get("SuSNachn"))
	assert.Equal(t, "", records[0].Get("Rückgabe"))
	assert.Equal(t, "0042", records[1].Get("AnschJahr"))
	assert.Equal(t, "x", records[1].Get("Rückgabe"))

	explicit, err := ReadAs(bytes.NewReader(buf.Bytes()), FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, records, explicit)
}

func TestReadAsRejectsCorruptWorkbook(t *testing.T) {
	_, err := ReadAs(strings.NewReader("ITNr\nIT-1\n"), FormatXLSX)
	assert.Error(t, err)
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatXLSX} {
		err := Write(&bytes.Buffer{}, format, []string{"a", "b"}, [][]string{{"1"}})
		assert.Error(t, err, format)
	}
	assert.Error(t, Write(&bytes.Buffer{}, Format("ods"), []string{"a"}, nil))
}

func TestFormatFor(t *testing.T) {
	cases := []struct {
		filename    string
		contentType string
		want        Format
	}{
		{"bestand.XLSX", "", FormatXLSX},
		{"bestand.csv", ContentTypeXLSX, FormatCSV},
		{"", ContentTypeXLSX, FormatXLSX},
		{"", "text/csv; charset=utf-8", FormatCSV},
		{"upload", "application/octet-stream", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatFor(tc.filename, tc.contentType), "%q %q", tc.filename, tc.contentType)
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Equal(t, ".xlsx", format.Extension())
	assert.Equal(t, ContentTypeXLSX, format.ContentType())

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
