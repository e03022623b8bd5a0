package correlate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/source"
	"github.com/leapstack-labs/leapingest/internal/testutil"
	"github.com/leapstack-labs/leapingest/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink records upserts and deletes stale keys from a preloaded set.
type memorySink struct {
	existing  map[string]struct{}
	records   map[string]mapping.AttributeSet
	order     []string
	deleted   []string
	failOn    string
	deleteErr error
}

func newMemorySink(existing ...string) *memorySink {
	s := &memorySink{existing: map[string]struct{}{}, records: map[string]mapping.AttributeSet{}}
	for _, k := range existing {
		s.existing[k] = struct{}{}
	}
	return s
}

func (s *memorySink) Upsert(_ context.Context, key string, attrs mapping.AttributeSet) error {
	if key == s.failOn {
		return errors.New("constraint violation")
	}
	s.records[key] = attrs
	s.order = append(s.order, key)
	s.existing[key] = struct{}{}
	return nil
}

func (s *memorySink) DeleteAllExcept(_ context.Context, keep map[string]struct{}) (int, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	for k := range s.existing {
		if _, ok := keep[k]; !ok {
			s.deleted = append(s.deleted, k)
			delete(s.existing, k)
		}
	}
	sort.Strings(s.deleted)
	return len(s.deleted), nil
}

func rows(keyCol string, keys []string, extraCol string) []source.Row {
	out := make([]source.Row, 0, len(keys))
	for _, k := range keys {
		out = append(out, source.RowFromMap(map[string]string{keyCol: k, extraCol: extraCol + "-" + k}))
	}
	return out
}

func threeInputs(k1, k2, k3 []string) []Input {
	mk := func(name, col string) mapping.FieldMapping {
		return mapping.New(name,
			mapping.Derived("petersons_id", transform.String("ID")),
			mapping.Column(strings.ToLower(col), col),
		).KeyedBy("petersons_id")
	}
	return []Input{
		{Name: "PA2017.csv", Cursor: NewSliceCursor(rows("ID", k1, "NAME")...), Mapping: mk("PA", "NAME")},
		{Name: "PA2017_2.csv", Cursor: NewSliceCursor(rows("ID", k2, "APPLY")...), Mapping: mk("PA_2", "APPLY")},
		{Name: "PA2017_D.csv", Cursor: NewSliceCursor(rows("ID", k3, "DESC")...), Mapping: mk("PA_D", "DESC")},
	}
}

func TestDriver_MergesAllSources(t *testing.T) {
	sink := newMemorySink()
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink, Logger: testutil.NewTestLogger(t)}

	keys := []string{"1", "2", "3"}
	res, err := d.Run(context.Background(), threeInputs(keys, keys, keys)...)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, []string{"1", "2", "3"}, sink.order)
	assert.Equal(t, mapping.AttributeSet{
		"petersons_id": "2",
		"name":         "NAME-2",
		"apply":        "APPLY-2",
		"desc":         "DESC-2",
	}, sink.records["2"])
	assert.Len(t, res.Seen, 3)
}

func TestDriver_AbortsOnMisalignedKey(t *testing.T) {
	sink := newMemorySink("9")
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink, Logger: testutil.NewTestLogger(t)}

	_, err := d.Run(context.Background(), threeInputs(
		[]string{"1", "2", "3"},
		[]string{"1", "2", "4"},
		[]string{"1", "2", "3"},
	)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMisaligned)
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "PA2017_2.csv")

	assert.Equal(t, []string{"1", "2"}, sink.order, "no upserts after the mismatch")
	assert.Empty(t, sink.deleted, "no stale deletion after an abort")
}

func TestDriver_AbortsOnSecondRowMismatch(t *testing.T) {
	sink := newMemorySink()
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink}

	_, err := d.Run(context.Background(), threeInputs(
		[]string{"1", "3"},
		[]string{"1", "4"},
		[]string{"1", "3"},
	)...)
	require.ErrorIs(t, err, ErrMisaligned)
	assert.Equal(t, []string{"1"}, sink.order)
}

func TestDriver_DeletesStaleRecords(t *testing.T) {
	sink := newMemorySink("1", "2", "3", "4")
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink, Logger: testutil.NewTestLogger(t)}

	keys := []string{"1", "2", "3"}
	res, err := d.Run(context.Background(), threeInputs(keys, keys, keys)...)
	require.NoError(t, err)

	assert.Equal(t, []string{"4"}, sink.deleted)
	assert.Equal(t, 1, res.Deleted)
}

func TestDriver_UnevenFiles(t *testing.T) {
	t.Run("abort by default", func(t *testing.T) {
		sink := newMemorySink("1", "2", "3", "4")
		d := &Driver{KeyAttribute: "petersons_id", Sink: sink}

		res, err := d.Run(context.Background(), threeInputs(
			[]string{"1", "2", "3"},
			[]string{"1", "2"},
			[]string{"1", "2", "3"},
		)...)
		require.ErrorIs(t, err, ErrUnevenFiles)
		assert.Equal(t, 2, res.Rows)
		assert.Empty(t, sink.deleted)
	})

	t.Run("allow uneven logs and deletes", func(t *testing.T) {
		sink := newMemorySink("1", "2", "3", "4")
		d := &Driver{KeyAttribute: "petersons_id", Sink: sink, AllowUneven: true, Logger: testutil.NewTestLogger(t)}

		res, err := d.Run(context.Background(), threeInputs(
			[]string{"1", "2", "3"},
			[]string{"1", "2"},
			[]string{"1", "2", "3"},
		)...)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Rows)
		assert.Equal(t, []string{"3", "4"}, sink.deleted)
	})
}

func TestDriver_UpsertFailureIsReported(t *testing.T) {
	sink := newMemorySink()
	sink.failOn = "2"
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink, Logger: testutil.NewTestLogger(t)}

	keys := []string{"1", "2", "3"}
	res, err := d.Run(context.Background(), threeInputs(keys, keys, keys)...)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Seen, "2", "a failed upsert still counts as seen")
}

func TestDriver_KeyFromLaterFile(t *testing.T) {
	sink := newMemorySink()
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink, Logger: testutil.NewTestLogger(t)}

	res, err := d.Run(context.Background(), threeInputs(
		[]string{"", " "},
		[]string{"7", ""},
		[]string{"7", ""},
	)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, sink.order)
	assert.Equal(t, 1, res.Skipped, "row without any key is skipped")
}

func TestDriver_DeleteError(t *testing.T) {
	sink := newMemorySink()
	sink.deleteErr = errors.New("database is locked")
	d := &Driver{KeyAttribute: "petersons_id", Sink: sink}

	keys := []string{"1"}
	_, err := d.Run(context.Background(), threeInputs(keys, keys, keys)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestDriver_Validation(t *testing.T) {
	_, err := (&Driver{KeyAttribute: "id", Sink: newMemorySink()}).Run(context.Background())
	assert.Error(t, err)

	keys := []string{"1"}
	_, err = (&Driver{Sink: newMemorySink()}).Run(context.Background(), threeInputs(keys, keys, keys)...)
	assert.Error(t, err)
}

func TestDriver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	keys := []string{"1"}
	_, err := (&Driver{KeyAttribute: "petersons_id", Sink: newMemorySink()}).Run(ctx, threeInputs(keys, keys, keys)...)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk(t *testing.T) {
	cur := NewSliceCursor(rows("UNITID", []string{"1", "2", "3"}, "X")...)

	var seen []string
	n, err := Walk(context.Background(), cur, func(r source.Row) error {
		seen = append(seen, r.Value("UNITID"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1", "2", "3"}, seen)
}

func TestWalk_StopsOnError(t *testing.T) {
	cur := NewSliceCursor(rows("UNITID", []string{"1", "2", "3"}, "X")...)
	boom := errors.New("boom")

	n, err := Walk(context.Background(), cur, func(r source.Row) error {
		if r.Value("UNITID") == "2" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
}

func TestWalk_SourceReader(t *testing.T) {
	r, err := source.NewReader("effy.csv", strings.NewReader("UNITID,EFFYLEV\n1,2\n2,1\n"), source.Options{})
	require.NoError(t, err)

	n, err := Walk(context.Background(), r, func(source.Row) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
