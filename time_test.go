package accounts_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestIsWithin(t *testing.T) {
	window := map[string]struct {
		age    time.Duration
		ttl    time.Duration
		inside bool
	}{
		"fresh request":       {age: time.Hour, ttl: 24 * time.Hour, inside: true},
		"stale request":       {age: 48 * time.Hour, ttl: 24 * time.Hour, inside: false},
		"boundary is outside": {age: 2 * time.Hour, ttl: 2 * time.Hour, inside: false},
		"future time":         {age: -time.Minute, ttl: time.Second, inside: true},
		"zero ttl":            {age: time.Second, ttl: 0, inside: false},
	}

	for name, c := range window {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.inside, accounts.IsWithin(time.Now().Add(-c.age), c.ttl))
		})
	}
}
