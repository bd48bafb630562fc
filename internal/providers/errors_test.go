package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorType
	}{
		{"insufficient_quota for project", ErrorQuota},
		{"429 too many requests", ErrorRate},
		{"request timeout talking to upstream", ErrorTransient},
		{"prompt context too long", ErrorContext},
		{"invalid api key", ErrorPermanent},
	}
	for _, tc := range cases {
		if got := ClassifyError(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("%q: got %s want %s", tc.msg, got, tc.want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("nil error must classify empty, got %s", got)
	}
}
