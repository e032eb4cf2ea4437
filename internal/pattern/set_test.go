package pattern

import (
	"errors"
	"testing"

	"github.com/logvision/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSet(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, ValidateSet(Defaults()))
	})

	t.Run("empty name", func(t *testing.T) {
		err := ValidateSet([]models.Pattern{{ID: "a", Pattern: `(\d)`}})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "name", ve.Field)
	})

	t.Run("duplicate names", func(t *testing.T) {
		err := ValidateSet([]models.Pattern{
			{ID: "a", Name: "cpu", Pattern: `(\d)`},
			{ID: "b", Name: "cpu", Pattern: `(\w)`},
		})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "duplicate", ve.Reason)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		err := ValidateSet([]models.Pattern{
			{ID: "a", Name: "cpu", Pattern: `(\d)`},
			{ID: "a", Name: "mem", Pattern: `(\w)`},
		})
		assert.Error(t, err)
	})

	t.Run("invalid regex reported", func(t *testing.T) {
		err := ValidateSet([]models.Pattern{{ID: "a", Name: "bad", Pattern: `(`}})
		var ipe *InvalidPatternError
		assert.True(t, errors.As(err, &ipe))
	})
}

func TestReservedNames(t *testing.T) {
	for _, name := range []string{"timestamp", "state_original"} {
		t.Run(name, func(t *testing.T) {
			err := Validate(models.Pattern{ID: "a", Name: name, Pattern: `(\d)`})
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "is reserved", ve.Reason)
		})
	}
	assert.NoError(t, Validate(models.Pattern{Name: "original", Pattern: `(\d)`}))
}

func TestCheckSet(t *testing.T) {
	assert.NoError(t, CheckSet([]models.Pattern{
		{ID: "a", Name: "cpu", Pattern: `cpu=(\d+)`},
		{ID: "b", Name: "broken", Pattern: `(`},
	}), "compile errors are left to CompileSet")

	err := CheckSet([]models.Pattern{
		{ID: "a", Name: "cpu", Pattern: `(\d)`},
		{ID: "b", Name: "cpu", Pattern: `(`},
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "duplicate", ve.Reason)
}

func TestCompileSetSkipsDuplicateAndReservedNames(t *testing.T) {
	matchers, errs := CompileSet([]models.Pattern{
		{Name: "x", Pattern: `a=(\d+)`},
		{Name: "x", Pattern: `b=(\d+)`},
		{Name: "timestamp", Pattern: `t=(\d+)`},
		{Name: "y", Pattern: `c=(\d+)`},
	})

	require.Len(t, errs, 2)
	require.Len(t, matchers, 2)
	assert.Equal(t, `a=(\d+)`, matchers[0].Pattern().Pattern)
	assert.Equal(t, "y", matchers[1].Name())
}

func TestCompileSetIsolatesFailures(t *testing.T) {
	matchers, errs := CompileSet([]models.Pattern{
		{Name: "good", Pattern: `a=(\d+)`},
		{Name: "bad", Pattern: `b=(\d+`},
		{Name: "also good", Pattern: `c=(\d+)`},
	})

	require.Len(t, errs, 1)
	require.Len(t, matchers, 2)
	assert.Equal(t, "good", matchers[0].Name())
	assert.Equal(t, "also good", matchers[1].Name())
}

func TestEnsureIDs(t *testing.T) {
	in := []models.Pattern{{ID: "keep", Name: "a"}, {Name: "b"}}
	out := EnsureIDs(in)

	assert.Equal(t, "keep", out[0].ID)
	assert.NotEmpty(t, out[1].ID)
	assert.Empty(t, in[1].ID, "input must not be modified")
}

func TestExportImport(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Export(Defaults(), format)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "default-cpu")

			got, err := Import(data, format)
			require.NoError(t, err)
			require.Len(t, got, 4)
			assert.Equal(t, "CPU Usage", got[0].Name)
			assert.Equal(t, `CPU_USAGE cpu=(\d+)%`, got[0].Pattern)
			assert.NotEmpty(t, got[0].ID)
			assert.NotEqual(t, "default-cpu", got[0].ID)
		})
	}
}

func TestImportRejects(t *testing.T) {
	cases := map[string]string{
		"not an array":  `{"name":"x"}`,
		"missing name":  `[{"pattern":"(\\d)"}]`,
		"missing regex": `[{"name":"x"}]`,
		"bad regex":     `[{"name":"x","pattern":"("}]`,
		"duplicate":     `[{"name":"x","pattern":"(a)"},{"name":"x","pattern":"(b)"}]`,
		"reserved":      `[{"name":"timestamp","pattern":"(a)"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Import([]byte(input), FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)
}
