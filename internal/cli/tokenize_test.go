package cli

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{
			name: "empty line",
			raw:  "",
			want: Command{Flags: map[string]bool{}},
		},
		{
			name: "command only",
			raw:  "run",
			want: Command{Name: "run", Flags: map[string]bool{}},
		},
		{
			name: "positionals",
			raw:  "run echo hello",
			want: Command{Name: "run", Args: []string{"echo", "hello"}, Flags: map[string]bool{}},
		},
		{
			name: "long flags",
			raw:  "run echo --verbose --json",
			want: Command{Name: "run", Args: []string{"echo"}, Flags: map[string]bool{"verbose": true, "json": true}},
		},
		{
			name: "flag value becomes positional",
			raw:  "run --type echo",
			want: Command{Name: "run", Args: []string{"echo"}, Flags: map[string]bool{"type": true}},
		},
		{
			name: "bundled short flags",
			raw:  "list -av",
			want: Command{Name: "list", Flags: map[string]bool{"a": true, "v": true}},
		},
		{
			name: "quoted argument keeps spaces",
			raw:  `run echo "hello world"`,
			want: Command{Name: "run", Args: []string{"echo", "hello world"}, Flags: map[string]bool{}},
		},
		{
			name: "single quotes",
			raw:  "run 'a b' c",
			want: Command{Name: "run", Args: []string{"a b", "c"}, Flags: map[string]bool{}},
		},
		{
			name: "extra whitespace",
			raw:  "  run \t echo  ",
			want: Command{Name: "run", Args: []string{"echo"}, Flags: map[string]bool{}},
		},
		{
			name: "bare double dash ignored",
			raw:  "run --",
			want: Command{Name: "run", Flags: map[string]bool{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
