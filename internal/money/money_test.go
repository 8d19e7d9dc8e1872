package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":    "1.01",
		"2.675":    "2.68",
		"0.125":    "0.13",
		"-0.125":   "-0.13",
		"59.97":    "59.97",
		"10":       "10.00",
		"0.004":    "0.00",
		"123.4449": "123.44",
	}
	for in, want := range cases {
		require.Equal(t, want, MustParse(in).Round2().String(), in)
	}
}

func TestArithmeticIsExact(t *testing.T) {
	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.10"))
	}
	require.True(t, total.Equal(FromInt(1)))

	line := MustParse("3").Mul(MustParse("19.99")).Round2()
	require.Equal(t, "59.97", line.String())

	tax := MustParse("100.00").Percent(MustParse("20.00")).Round2()
	require.Equal(t, "20.00", tax.String())

	require.Equal(t, "-5.00", FromInt(10).Sub(FromInt(15)).String())
	require.Equal(t, "6.00", Sum(FromInt(1), FromInt(2), FromInt(3)).String())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
	_, err = Parse("12,50")
	require.Error(t, err)
	_, err = Parse("abc")
	require.Error(t, err)
}

func TestJSONEncoding(t *testing.T) {
	out, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: MustParse("120")})
	require.NoError(t, err)
	require.JSONEq(t, `{"total":120.00}`, string(out))
	require.Contains(t, string(out), "120.00")

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":19.99,"b":"2.5"}`), &in))
	require.Equal(t, "19.99", in.A.String())
	require.Equal(t, "2.50", in.B.String())

	require.Error(t, json.Unmarshal([]byte(`{"a":"nope"}`), &in))
}

func TestScanAndValue(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("42.10"))
	require.Equal(t, "42.10", a.String())
	require.NoError(t, a.Scan([]byte("7")))
	require.Equal(t, "7.00", a.String())
	require.NoError(t, a.Scan(nil))
	require.True(t, a.IsZero())

	v, err := MustParse("12.30").Value()
	require.NoError(t, err)
	require.Equal(t, "12.3", v)
}

func TestComparisons(t *testing.T) {
	require.Equal(t, -1, FromInt(1).Cmp(FromInt(2)))
	require.True(t, FromInt(1).IsPositive())
	require.True(t, FromInt(-1).IsNegative())
	require.Equal(t, 0, Zero.Sign())
	require.True(t, FromInt(1).LessThan(FromInt(2)))
}
