package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/reservations":                "reservations",
		"/api/v1/reservations/6f1c1f8e":       "reservations",
		"/api/v1/orders/order-42/convert":     "orders",
		"/health":                             "health",
		"/":                                   "root",
		"/api/v1/holders/cart-A/reservations": "holders",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}
