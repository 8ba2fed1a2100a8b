package delimited

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, fn coerce.Func, opts ...Option) []models.Record {
	t.Helper()
	var out []models.Record
	for rec, err := range NewReader(strings.NewReader(input), fn, opts...).All() {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestReader_ExactWidthLine(t *testing.T) {
	input := "KNUMBER|APPLICANT|DECISIONDATE|THIRDPARTY\nK000001|ACME|01/15/2020|N\n"
	recs := collect(t, input, coerce.PremarketRules.Func())

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, []string{"KNUMBER", "APPLICANT", "DECISIONDATE", "THIRDPARTY"}, rec.Names())
	assert.Equal(t, models.Field{Name: "KNUMBER", Value: "K000001"}, rec.Fields[0])
	assert.Equal(t, time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC), rec.Fields[2].Value)
	assert.Equal(t, false, rec.Fields[3].Value)
}

func TestReader_RaggedLines(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		names []string
	}{
		{"short line truncates", "1|2", []string{"A", "B"}},
		{"long line drops extras", "1|2|3|4|5", []string{"A", "B", "C"}},
		{"single value", "1", []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := collect(t, "A|B|C\n"+tt.line+"\n", coerce.Raw)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.names, recs[0].Names())
		})
	}
}

func TestReader_TrailingWhitespaceAndCRLF(t *testing.T) {
	input := "A|B  \r\nx|Y \r\n"
	recs := collect(t, input, coerce.PremarketRules.Func())

	require.Len(t, recs, 1)
	assert.Equal(t, []string{"A", "B"}, recs[0].Names())
	assert.Equal(t, true, recs[0].Fields[1].Value)
}

func TestReader_EmptyTrailingFieldIsNull(t *testing.T) {
	recs := collect(t, "A|B|C\nx||\n", coerce.PremarketRules.Func())
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"A", "B", "C"}, recs[0].Names())
	assert.Nil(t, recs[0].Fields[1].Value)
	assert.Nil(t, recs[0].Fields[2].Value)
}

func TestReader_LastLineWithoutNewline(t *testing.T) {
	recs := collect(t, "A|B\n1|2\n3|4", coerce.Raw)
	require.Len(t, recs, 2)
	v, _ := recs[1].Get("B")
	assert.Equal(t, "4", v)
}

func TestReader_SkipsBlankLines(t *testing.T) {
	recs := collect(t, "A|B\n1|2\n\n   \n3|4\n", coerce.Raw)
	assert.Len(t, recs, 2)
}

func TestReader_InvalidBytesDropped(t *testing.T) {
	input := "A|B\n1|good\n2|ba\xff\xfed\n3|fine\n"
	recs := collect(t, input, coerce.Raw)

	require.Len(t, recs, 3)
	v, _ := recs[1].Get("B")
	assert.Equal(t, "bad", v)
	v, _ = recs[2].Get("A")
	assert.Equal(t, "3", v)
}

func TestReader_InvalidBytesReplaced(t *testing.T) {
	input := "A|B\n2|ba\xffd\n"
	recs := collect(t, input, coerce.Raw, WithReplacement())

	require.Len(t, recs, 1)
	v, _ := recs[0].Get("B")
	assert.Equal(t, "ba\uFFFDd", v)
}

func TestReader_EncodedReplacementRune(t *testing.T) {
	input := "A|B\n1|x\uFFFDy\n"

	recs := collect(t, input, coerce.Raw)
	require.Len(t, recs, 1)
	v, _ := recs[0].Get("B")
	assert.Equal(t, "xy", v, "drop mode also removes an encoded U+FFFD")

	recs = collect(t, input, coerce.Raw, WithReplacement())
	require.Len(t, recs, 1)
	v, _ = recs[0].Get("B")
	assert.Equal(t, "x\uFFFDy", v)
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	recs := collect(t, "A|B\n"+long+"|y\n", coerce.Raw)
	require.Len(t, recs, 1)
	v, _ := recs[0].Get("A")
	assert.Len(t, v, len(long))
}

func TestReader_HeaderOnly(t *testing.T) {
	r := NewReader(strings.NewReader("A|B\n"), nil)
	header, err := r.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, header)

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReader_EmptyInput(t *testing.T) {
	r := NewReader(strings.NewReader(""), nil)
	_, err := r.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header row")

	var errs int
	for _, err := range NewReader(strings.NewReader(""), nil).All() {
		assert.Error(t, err)
		errs++
	}
	assert.Equal(t, 1, errs)
}

func TestReader_CustomDelimiter(t *testing.T) {
	recs := collect(t, "A,B\n1,2\n", coerce.Raw, WithDelimiter(","))
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"A", "B"}, recs[0].Names())
}

func TestReader_EarlyBreak(t *testing.T) {
	r := NewReader(strings.NewReader("A\n1\n2\n3\n"), coerce.Raw)
	for range r.All() {
		break
	}
	rec, err := r.Read()
	require.NoError(t, err)
	v, _ := rec.Get("A")
	assert.Equal(t, "2", v)
	assert.Equal(t, 3, r.Line())
}

func TestParse(t *testing.T) {
	var n int
	for _, err := range Parse(strings.NewReader("A\n1\n2\n"), nil) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}
