package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.Error(t, err)
}

func TestGetMultiline_DoubleEnter(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("a\nb\n\n\n"), "Enter text", &out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got)
}

func TestGetMultiline_EOFWithoutBlankLine(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("only"), "Enter text", &out)
	require.NoError(t, err)
	assert.Equal(t, "only", got)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Enter password")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Equal(t, "Enter password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&out, "Enter password")
	assert.Error(t, err)
}

func TestGetMetadata(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMetadata(rdr("bank=acme\nowner=ana\n\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"bank=acme", "owner=ana"}, got)
}

func TestGetInt(t *testing.T) {
	var out bytes.Buffer
	n, err := GetInt(rdr("\n"), "Days", 90, &out)
	require.NoError(t, err)
	assert.Equal(t, 90, n)

	n, err = GetInt(rdr("30\n"), "Days", 90, &out)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	_, err = GetInt(rdr("soon\n"), "Days", 90, &out)
	assert.Error(t, err)
}

func TestGetYesNo(t *testing.T) {
	cases := []struct {
		in   string
		def  bool
		want bool
		err  bool
	}{
		{in: "\n", def: true, want: true},
		{in: "\n", def: false, want: false},
		{in: "y\n", want: true},
		{in: "YES\n", want: true},
		{in: "no\n", def: true, want: false},
		{in: "maybe\n", err: true},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		got, err := GetYesNo(rdr(tc.in), "Sure?", tc.def, &out)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
