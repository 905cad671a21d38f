package terminology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
)

func newSub(t *testing.T, terms map[string]string) *Substituter {
	t.Helper()
	s, err := NewSubstituter(terms, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSubstituteCJK(t *testing.T) {
	s := newSub(t, map[string]string{"ドンキホーテ": "堂吉诃德"})

	units := []extractor.Unit{{
		ID: "E001", FilePath: "Enemies.json", FieldName: "name",
		SourceText: "ドンキホーテが現れた",
	}}
	out, err := s.Apply(units)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "堂吉诃德が現れた", out[0].Text)
	assert.Equal(t, []string{"堂吉诃德"}, out[0].Applied)
}

func TestLongestTermWins(t *testing.T) {
	s := newSub(t, map[string]string{
		"月":  "血月",
		"月光": "月光剑",
	})

	out, err := s.Apply([]extractor.Unit{{SourceText: "月光の下で"}})
	require.NoError(t, err)
	assert.Equal(t, "月光剑の下で", out[0].Text)
	assert.Equal(t, []string{"月光剑"}, out[0].Applied)
}

func TestASCIIWordBoundary(t *testing.T) {
	s := newSub(t, map[string]string{"Ego": "自我"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"整词替换", "Ego発動", "自我発動"},
		{"大小写不敏感", "EGO overflow", "自我 overflow"},
		{"词中不替换", "Egoist detected", "Egoist detected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Apply([]extractor.Unit{{SourceText: tt.in}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[0].Text)
		})
	}
}

func TestNoMatchLeavesTextAlone(t *testing.T) {
	s := newSub(t, map[string]string{"ドンキホーテ": "堂吉诃德"})

	out, err := s.Apply([]extractor.Unit{{SourceText: "関係ない文"}})
	require.NoError(t, err)
	assert.Equal(t, "関係ない文", out[0].Text)
	assert.Empty(t, out[0].Applied)
}

func TestEmptyTerminology(t *testing.T) {
	s := newSub(t, nil)
	assert.Equal(t, 0, s.Len())

	out, err := s.Apply([]extractor.Unit{{SourceText: "そのまま"}})
	require.NoError(t, err)
	assert.Equal(t, "そのまま", out[0].Text)
}

func TestMultipleTermsInOneText(t *testing.T) {
	s := newSub(t, map[string]string{
		"ドンキホーテ": "堂吉诃德",
		"グレゴール":  "格里高尔",
	})

	out, err := s.Apply([]extractor.Unit{{SourceText: "ドンキホーテとグレゴール"}})
	require.NoError(t, err)
	assert.Equal(t, "堂吉诃德と格里高尔", out[0].Text)
	assert.ElementsMatch(t, []string{"堂吉诃德", "格里高尔"}, out[0].Applied)
}
