package ingest

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	input := "\ufefftitle,Link,purchase_date,note\n" +
		"Book A, https://a.test/1 ,2024-01-01,  \n" +
		"Book B,,2024-02-02,skip me\n" +
		"Book C,https://a.test/3\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, 1, first.Index)
	require.Equal(t, "https://a.test/1", first.URL)
	require.Equal(t, "Link", first.URLColumn)
	require.Equal(t, []string{"title", "Link", "purchase_date", "note"}, first.Header)
	require.Equal(t, []string{"purchase_date"}, first.Extra.Keys())
	require.Equal(t, "2024-01-01", first.Extra.String("purchase_date"))
	require.Equal(t, " https://a.test/1 ", first.Original["Link"])

	second := rows[1]
	require.Equal(t, 2, second.Index)
	require.Equal(t, "https://a.test/3", second.URL)
	require.Equal(t, "", second.Original["purchase_date"])
	require.Zero(t, second.Extra.Len())
}

func TestParseCSVKoreanURLColumn(t *testing.T) {
	t.Parallel()

	rows, err := ParseCSV(strings.NewReader("이름,주소\n책,https://a.test/x\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "주소", rows[0].URLColumn)
	require.Equal(t, "책", rows[0].Extra.String("이름"))
}

func TestParseCSVRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  string
		reason string
	}{
		{"bad encoding", "url\nhttps://a.test/\xff\n", reasonEncoding},
		{"no url column", "title,isbn\nA,123\n", reasonNoURLs},
		{"no urls", "url,title\n,A\n", reasonNoURLs},
		{"empty", "", reasonNoURLs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCSV(strings.NewReader(tc.input))
			require.ErrorIs(t, err, ErrMalformedInput)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			require.Equal(t, tc.reason, inputErr.Reason)
		})
	}
}

func TestParseCSVReadFailure(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV(iotest.ErrReader(errors.New("connection reset")))
	require.ErrorIs(t, err, ErrMalformedInput)
	require.ErrorContains(t, err, "connection reset")
}

func TestRowFallbackMetadata(t *testing.T) {
	t.Parallel()

	rows, err := ParseCSV(strings.NewReader("title,url,purchase_date,memo\nBook B,https://a.test/2,2024-02-02,\n"))
	require.NoError(t, err)

	md := rows[0].FallbackMetadata()
	require.Equal(t, []string{"title", "purchase_date", "source_url"}, md.Keys())
	require.Equal(t, "Book B", md.String("title"))
	require.Equal(t, "https://a.test/2", md.String("source_url"))
}

func TestRowsFromURLs(t *testing.T) {
	t.Parallel()

	rows := RowsFromURLs([]string{" https://a.test/1", "", "https://a.test/2"})
	require.Len(t, rows, 2)
	require.Equal(t, 2, rows[1].Index)
	require.Equal(t, "https://a.test/1", rows[0].URL)
	require.Equal(t, map[string]any{"source_url": "https://a.test/2"}, rows[1].FallbackMetadata().Map())
}
