package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "   ", want: nil},
		{name: "simple", input: "i3 --get-socketpath", want: []string{"i3", "--get-socketpath"}},
		{name: "extra whitespace", input: "  sway \t --get-socketpath  ", want: []string{"sway", "--get-socketpath"}},
		{name: "double quotes", input: `sh -c "echo /run/i3.sock"`, want: []string{"sh", "-c", "echo /run/i3.sock"}},
		{name: "single quotes keep backslash", input: `printf '%s\n' x`, want: []string{"printf", `%s\n`, "x"}},
		{name: "escaped space", input: `/opt/my\ wm/bin/i3 --get-socketpath`, want: []string{"/opt/my wm/bin/i3", "--get-socketpath"}},
		{name: "empty quoted word", input: `cmd ""`, want: []string{"cmd", ""}},
		{name: "escaped quote in double quotes", input: `echo "a\"b"`, want: []string{"echo", `a"b`}},
		{name: "unterminated quote", input: `i3 "oops`, wantErr: "unterminated"},
		{name: "dangling escape", input: `i3 --get-socketpath\`, wantErr: "dangling backslash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitCommand(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
