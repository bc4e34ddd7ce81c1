package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CFG_TEST_HOST", "milvus.internal")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "host: ${CFG_TEST_HOST}", "host: milvus.internal"},
		{"set variable ignores default", "host: ${CFG_TEST_HOST:fallback}", "host: milvus.internal"},
		{"unset with default", "port: ${CFG_TEST_PORT:19530}", "port: 19530"},
		{"unset with empty default", "password: ${CFG_TEST_PASSWORD:}", "password: "},
		{"unset without default kept", "key: ${CFG_TEST_MISSING}", "key: ${CFG_TEST_MISSING}"},
		{"multiple placeholders", "${CFG_TEST_HOST}:${CFG_TEST_PORT:19530}", "milvus.internal:19530"},
		{"no placeholder", "plain: value", "plain: value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.in))
		})
	}
}
