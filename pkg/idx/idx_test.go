package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/xdauth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}

func TestMonotonic(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	prev := idx.NewAt(at)
	for range 100 {
		next := idx.NewAt(at)
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := idx.NewAt(tm)
	require.WithinDuration(t, tm, id.Time(), time.Millisecond)

	require.True(t, idx.ID("bogus").Time().IsZero())
}

func TestShort(t *testing.T) {
	id := idx.New()
	require.Len(t, id.Short(), 8)
	require.Equal(t, "abc", idx.ID("abc").Short())
}
