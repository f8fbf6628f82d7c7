package plistio

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/prefexport/internal/tree"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
`

const rectangleExport = header + `<dict>
	<key>launchOnLogin</key>
	<true/>
	<key>SUEnableAutomaticChecks</key>
	<false/>
	<key>gapSize</key>
	<real>5</real>
	<key>alternateDefaultShortcuts</key>
	<integer>1</integer>
	<key>ignoredApps</key>
	<array>
		<string>com.apple.Terminal</string>
		<string>com.apple.Safari</string>
	</array>
	<key>leftHalf</key>
	<dict>
		<key>modifierFlags</key>
		<integer>786432</integer>
		<key>keyCode</key>
		<integer>123</integer>
	</dict>
	<key>lastUpdate</key>
	<date>2024-03-01T12:30:00Z</date>
	<key>blob</key>
	<data>aGVsbG8=</data>
</dict>
</plist>
`

// ---------------------------------------------------------------------------
// Decode
// ---------------------------------------------------------------------------

func TestDecode_XML(t *testing.T) {
	v, format, err := Decode([]byte(rectangleExport))
	require.NoError(t, err)

	assert.Equal(t, "XML", format)
	require.Equal(t, tree.KindDict, v.Kind())
	assert.Equal(t, 8, v.Len())

	m := v.Map()
	assert.True(t, m["launchOnLogin"].Truth())
	assert.Equal(t, tree.KindReal, m["gapSize"].Kind())
	assert.InDelta(t, 5.0, m["gapSize"].Float(), 0)
	assert.Equal(t, "1", m["alternateDefaultShortcuts"].IntegerText())
	assert.Equal(t, []byte("hello"), m["blob"].Bytes())
	assert.True(t, m["lastUpdate"].Time().Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)))

	apps := m["ignoredApps"].Items()
	require.Len(t, apps, 2)
	assert.Equal(t, "com.apple.Terminal", apps[0].Str())
	assert.Equal(t, "com.apple.Safari", apps[1].Str())
}

func TestDecode_NegativeInteger(t *testing.T) {
	v, _, err := Decode([]byte(header + "<dict><key>n</key><integer>-5</integer></dict></plist>"))
	require.NoError(t, err)

	i, ok := v.Map()["n"].Int64()
	require.True(t, ok)
	assert.Equal(t, int64(-5), i)
}

func TestDecode_Malformed(t *testing.T) {
	for name, input := range map[string]string{
		"truncated":    header + "<dict><key>a</key>",
		"unterminated": `{ "unterminated`,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode([]byte(input))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.NotNil(t, decodeErr.Unwrap())
			assert.True(t, strings.HasPrefix(err.Error(), "failed to parse exported plist: "))
		})
	}
}

func TestDecode_ArrayRoot(t *testing.T) {
	v, _, err := Decode([]byte(header + "<array><string>a</string></array></plist>"))
	require.NoError(t, err)
	assert.Equal(t, tree.KindArray, v.Kind())
	assert.Error(t, tree.EnsureDictRoot(v))
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, "XML", FormatName(1))
	assert.Equal(t, "format(99)", FormatName(99))
}

// ---------------------------------------------------------------------------
// Encode
// ---------------------------------------------------------------------------

func TestEncode_SortsKeys(t *testing.T) {
	v := tree.Dict(map[string]tree.Value{
		"B": tree.Int(2),
		"A": tree.Int(1),
	})

	got, err := Encode(v)
	require.NoError(t, err)

	want := header + `<dict>
	<key>A</key>
	<integer>1</integer>
	<key>B</key>
	<integer>2</integer>
</dict>
</plist>
`
	assert.Equal(t, want, string(got))
}

func TestEncode_AllKinds(t *testing.T) {
	v := tree.Dict(map[string]tree.Value{
		"str":   tree.String(`a < b & "c"`),
		"neg":   tree.Int(-3),
		"big":   tree.Uint(math.MaxUint64),
		"real":  tree.Real(0.5),
		"whole": tree.Real(2),
		"yes":   tree.Bool(true),
		"no":    tree.Bool(false),
		"when":  tree.Date(time.Date(2024, 3, 1, 13, 30, 0, 0, time.FixedZone("CET", 3600))),
		"blob":  tree.Data([]byte("hello")),
		"empty": tree.Dict(nil),
		"none":  tree.Array(),
		"list": tree.Array(
			tree.String("z"),
			tree.Dict(map[string]tree.Value{"y": tree.Int(1), "x": tree.Int(0)}),
		),
	})

	got, err := Encode(v)
	require.NoError(t, err)

	want := header + `<dict>
	<key>big</key>
	<integer>18446744073709551615</integer>
	<key>blob</key>
	<data>
	aGVsbG8=
	</data>
	<key>empty</key>
	<dict/>
	<key>list</key>
	<array>
		<string>z</string>
		<dict>
			<key>x</key>
			<integer>0</integer>
			<key>y</key>
			<integer>1</integer>
		</dict>
	</array>
	<key>neg</key>
	<integer>-3</integer>
	<key>no</key>
	<false/>
	<key>none</key>
	<array/>
	<key>real</key>
	<real>0.5</real>
	<key>str</key>
	<string>a &lt; b &amp; "c"</string>
	<key>when</key>
	<date>2024-03-01T12:30:00Z</date>
	<key>whole</key>
	<real>2.0</real>
	<key>yes</key>
	<true/>
</dict>
</plist>
`
	assert.Equal(t, want, string(got))
}

func TestEncode_Deterministic(t *testing.T) {
	v, _, err := Decode([]byte(rectangleExport))
	require.NoError(t, err)

	first, err := Encode(v)
	require.NoError(t, err)

	for range 20 {
		again, err := Encode(v)
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, again))
	}
}

func TestEncode_KeyOrderInvariance(t *testing.T) {
	keys := []string{"zeta", "alpha", "Mid", "beta", "_under", "0num"}

	forward := make(map[string]tree.Value, len(keys))
	for i, k := range keys {
		forward[k] = tree.Int(int64(i))
	}

	backward := make(map[string]tree.Value, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		backward[keys[i]] = tree.Int(int64(i))
	}

	a, err := Encode(tree.Dict(map[string]tree.Value{"nested": tree.Dict(forward)}))
	require.NoError(t, err)

	b, err := Encode(tree.Dict(map[string]tree.Value{"nested": tree.Dict(backward)}))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestEncode_RoundTripPreservesArrayOrder(t *testing.T) {
	items := []tree.Value{tree.String("c"), tree.String("a"), tree.Int(3), tree.String("b")}
	src := tree.Dict(map[string]tree.Value{"seq": tree.Array(items...)})

	encoded, err := Encode(src)
	require.NoError(t, err)

	decoded, _, err := Decode(encoded)
	require.NoError(t, err)

	assert.True(t, tree.Equal(src, decoded))
}

func TestEncode_RoundTripRectangle(t *testing.T) {
	v, _, err := Decode([]byte(rectangleExport))
	require.NoError(t, err)

	encoded, err := Encode(v)
	require.NoError(t, err)

	again, _, err := Decode(encoded)
	require.NoError(t, err)

	assert.True(t, tree.Equal(v, again))
}

func TestEncode_RejectsControlCharacters(t *testing.T) {
	_, err := Encode(tree.Dict(map[string]tree.Value{"bad": tree.String("bell\x07")}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/bad")
	assert.Contains(t, err.Error(), "control character")
}

func TestEncode_RejectsNoncharacters(t *testing.T) {
	for _, s := range []string{"a\uFFFEb", "\uFFFF"} {
		_, err := Encode(tree.Dict(map[string]tree.Value{"bad": tree.String(s)}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "noncharacter")
	}

	_, err := Encode(tree.Dict(map[string]tree.Value{"\uFFFE": tree.Int(1)}))
	require.Error(t, err)
}

func TestEncode_PositionalReals(t *testing.T) {
	got, err := Encode(tree.Dict(map[string]tree.Value{"ts": tree.Real(1700000000.5)}))
	require.NoError(t, err)
	assert.Contains(t, string(got), "<real>1700000000.5</real>")
}

func TestEncode_RejectsInvalidValue(t *testing.T) {
	_, err := Encode(tree.Dict(map[string]tree.Value{"zero": {}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot encode value of kind invalid")
}

func TestWrapBase64(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 120)

	lines := wrapBase64(data, 68)
	require.Len(t, lines, 3)

	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 68)
	}

	assert.Empty(t, wrapBase64(nil, 68))
	assert.Len(t, wrapBase64(data, 0)[0], 16, "width floors at 16 columns")
}

func TestFormatReal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1234567, "1234567.0"},
		{1700000000.5, "1700000000.5"},
		{1e15, "1000000000000000.0"},
		{1e16, "1e+16"},
		{1.5e20, "1.5e+20"},
		{0.0001, "0.0001"},
		{1e-5, "1e-05"},
		{-1234567.25, "-1234567.25"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReal(tt.in))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	first, err := Canonicalize([]byte(rectangleExport))
	require.NoError(t, err)

	second, err := Canonicalize(first)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), header))
}

func TestCanonicalize_RejectsArrayRoot(t *testing.T) {
	_, err := Canonicalize([]byte(header + "<array/></plist>"))
	require.Error(t, err)

	var rootErr *tree.UnexpectedRootTypeError
	assert.ErrorAs(t, err, &rootErr)
}
