package olap

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowParam(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 24},
		{"?hours=6", 6},
		{"?hours=0", 24},
		{"?hours=-3", 24},
		{"?hours=9000", 168},
		{"?hours=abc", 24},
	}
	for _, c := range cases {
		r := httptest.NewRequest("GET", "/sales/hourly"+c.query, nil)
		assert.Equalf(t, c.want, windowParam(r, "hours", 24, 168), "query %q", c.query)
	}
}
