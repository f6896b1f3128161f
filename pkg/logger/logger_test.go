package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		level     string
		expectErr bool
	}{
		{name: "json_info", format: "json", level: "info"},
		{name: "text_debug", format: "text", level: "debug"},
		{name: "none_level", format: "json", level: "none"},
		{name: "unknown_level", format: "json", level: "verbose", expectErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l, err := NewLogger(test.format, test.level)
			if test.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestMustNewLoggerPanics(t *testing.T) {
	require.Panics(t, func() {
		MustNewLogger("json", "bogus")
	})
}
