package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testcase/types"
)

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry(Config{Log: log.NewLogger(log.DiscardHandler())})
	for _, name := range names {
		require.NoError(t, r.Register(types.Describe(name).Build()))
	}
	return r
}

func names(contexts []*types.Context) []string {
	var out []string
	for _, c := range contexts {
		out = append(out, c.Name())
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t, "Parser", "Lexer")

	assert.ErrorIs(t, r.Register(nil), ErrNilContext)
	assert.ErrorIs(t, r.Register(types.Describe("Parser").Build()), ErrDuplicateContext)
	assert.Equal(t, []string{"Parser", "Lexer"}, names(r.Contexts()))
}

func TestRegistry_Select(t *testing.T) {
	r := newTestRegistry(t, "Parser", "Parser errors", "Lexer", "engine/fixtures", "engine/events")

	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantErr  error
	}{
		{
			name: "no patterns selects all",
			want: []string{"Parser", "Parser errors", "Lexer", "engine/fixtures", "engine/events"},
		},
		{
			name:     "exact name",
			patterns: []string{"Lexer"},
			want:     []string{"Lexer"},
		},
		{
			name:     "pattern order wins over registration order",
			patterns: []string{"Lexer", "Parser*"},
			want:     []string{"Lexer", "Parser", "Parser errors"},
		},
		{
			name:     "duplicates are dropped",
			patterns: []string{"Parser", "Parser*"},
			want:     []string{"Parser", "Parser errors"},
		},
		{
			name:     "double star crosses separators",
			patterns: []string{"engine/**"},
			want:     []string{"engine/fixtures", "engine/events"},
		},
		{
			name:     "single star stays in a segment",
			patterns: []string{"engine/e*"},
			want:     []string{"engine/events"},
		},
		{
			name:     "unmatched pattern",
			patterns: []string{"Lexer", "Nope"},
			wantErr:  ErrNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Select(tt.patterns)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestRegistry_SelectInvalidPattern(t *testing.T) {
	r := newTestRegistry(t, "Parser")
	_, err := r.Select([]string{"Parser["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}
