package payment

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHashKey = "5294y06JbISpM5x9"
	testHashIV  = "v77hoKGq4kWxNNIS"
)

func sampleParams() map[string]string {
	return map[string]string{
		"MerchantID":        "2000132",
		"MerchantTradeNo":   "ND202501010001",
		"MerchantTradeDate": "2025/01/01 12:00:00",
		"TotalAmount":       "510",
		"PaymentType":       "aio",
		"ChoosePayment":     "ATM",
	}
}

func TestLegacyURLEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"a b", "a+b"},
		{"a-b_c.d", "a-b_c.d"},
		{"a!b*c(d)e", "a!b*c(d)e"},
		{"a~b", "a%7eb"},
		{"a=b&c", "a%3db%26c"},
		{"中", "%e4%b8%ad"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, legacyURLEncode(tt.in), "input %q", tt.in)
	}
}

func TestSignShape(t *testing.T) {
	mac := Sign(sampleParams(), testHashKey, testHashIV)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{64}$`), mac)
}

func TestSignIsDeterministic(t *testing.T) {
	a := Sign(sampleParams(), testHashKey, testHashIV)
	b := Sign(sampleParams(), testHashKey, testHashIV)
	assert.Equal(t, a, b)
}

func TestSignIgnoresExistingCheckMacValue(t *testing.T) {
	params := sampleParams()
	want := Sign(params, testHashKey, testHashIV)
	params[checkMacField] = "FFFF"
	assert.Equal(t, want, Sign(params, testHashKey, testHashIV))
}

func TestSignChangesWithAnyParameter(t *testing.T) {
	base := Sign(sampleParams(), testHashKey, testHashIV)

	changed := sampleParams()
	changed["TotalAmount"] = "511"
	assert.NotEqual(t, base, Sign(changed, testHashKey, testHashIV))

	otherKey := Sign(sampleParams(), "otherkey12345678", testHashIV)
	assert.NotEqual(t, base, otherKey)
}

func TestVerifyRoundTrip(t *testing.T) {
	params := sampleParams()
	params[checkMacField] = Sign(params, testHashKey, testHashIV)
	require.True(t, Verify(params, testHashKey, testHashIV))
}

func TestVerifyRejectsTamperedParameter(t *testing.T) {
	params := sampleParams()
	params[checkMacField] = Sign(params, testHashKey, testHashIV)

	params["TotalAmount"] = "1"
	assert.False(t, Verify(params, testHashKey, testHashIV))
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	assert.False(t, Verify(sampleParams(), testHashKey, testHashIV))
}
