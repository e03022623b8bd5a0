package scholarship

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapingest/internal/correlate"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/leapstack-labs/leapingest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directory(ids1, ids2, idsD []string) map[string][]string {
	files := map[string][]string{
		"CD1_ACAD.txt": {"CODE\tLABEL", "205\tMusic"},
		"CD4_ETHN.txt": {"CODE\tLABEL", "3\tIrish"},
		"CD5_RELG.txt": {"CODE\tLABEL", "40\tLutheran"},
		"PA2017.csv":   {"ID,HIAMNT,M-STUD1,SCHOL"},
		"PA2017_2.csv": {"ID,POSTGRAD,APPL_ONLINE_URL"},
		"PA2017_D.csv": {"ID,PROGRAM_NAME"},
	}
	for _, id := range ids1 {
		files["PA2017.csv"] = append(files["PA2017.csv"], id+",1000,205,X")
	}
	for _, id := range ids2 {
		files["PA2017_2.csv"] = append(files["PA2017_2.csv"], id+",X,https://apply.example.org/"+id)
	}
	for _, id := range idsD {
		files["PA2017_D.csv"] = append(files["PA2017_D.csv"], id+",Award "+id)
	}
	return files
}

func setupStore(t *testing.T, existing ...string) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Driver: "sqlite", Path: ":memory:"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	for _, id := range existing {
		_, err := s.Scholarships().FindOrCreate(ctx, id)
		require.NoError(t, err)
	}
	return s
}

func TestImporter_Import(t *testing.T) {
	ids := []string{"1", "2", "3"}
	dir := testutil.WriteFiles(t, directory(ids, ids, ids))
	s := setupStore(t, "1", "2", "3", "4")

	imp := &Importer{
		Scholarships: s.Scholarships(),
		Logger:       testutil.NewTestLogger(t),
		DataDir:      dir,
		Year:         2017,
	}
	res, err := imp.Import(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, 1, res.Deleted)

	remaining, err := s.Scholarships().ExternalIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, remaining)

	got, err := s.Scholarships().FindByExternalID(context.Background(), "2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Award 2", got.Attributes["name"])
	assert.Equal(t, int64(1000), got.Attributes["amount_max"])
	assert.Equal(t, "scholarship", got.Attributes["award_type"])
	assert.Equal(t, true, got.Attributes["postgrad"])
	assert.Equal(t, "https://apply.example.org/2", got.Attributes["apply_url"])
	assert.Equal(t, []any{"Music"}, got.Attributes["fields_of_study"])
}

func TestImporter_Misaligned(t *testing.T) {
	dir := testutil.WriteFiles(t, directory(
		[]string{"1", "2", "3"},
		[]string{"1", "2", "4"},
		[]string{"1", "2", "3"},
	))
	s := setupStore(t, "9")

	imp := &Importer{Scholarships: s.Scholarships(), DataDir: dir, Year: 2017}
	_, err := imp.Import(context.Background())
	require.ErrorIs(t, err, correlate.ErrMisaligned)

	ids, err := s.Scholarships().ExternalIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "9"}, ids, "rows before the mismatch stay and nothing is pruned")
}

func TestImporter_Uneven(t *testing.T) {
	files := directory([]string{"1", "2"}, []string{"1"}, []string{"1", "2"})

	t.Run("aborts", func(t *testing.T) {
		s := setupStore(t, "7")
		imp := &Importer{Scholarships: s.Scholarships(), DataDir: testutil.WriteFiles(t, files), Year: 2017}

		_, err := imp.Import(context.Background())
		require.ErrorIs(t, err, correlate.ErrUnevenFiles)

		n, err := s.Scholarships().Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("allowed", func(t *testing.T) {
		s := setupStore(t, "7")
		imp := &Importer{Scholarships: s.Scholarships(), DataDir: testutil.WriteFiles(t, files), Year: 2017, AllowUneven: true}

		res, err := imp.Import(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Deleted)

		ids, err := s.Scholarships().ExternalIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, ids)
	})
}

func TestImporter_MissingSideTable(t *testing.T) {
	files := directory([]string{"1"}, []string{"1"}, []string{"1"})
	delete(files, "CD4_ETHN.txt")
	s := setupStore(t)

	imp := &Importer{Scholarships: s.Scholarships(), DataDir: testutil.WriteFiles(t, files), Year: 2017}
	_, err := imp.Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "side tables")
}

func TestImporter_MissingDataFile(t *testing.T) {
	files := directory([]string{"1"}, []string{"1"}, []string{"1"})
	delete(files, "PA2017_D.csv")
	s := setupStore(t)

	imp := &Importer{Scholarships: s.Scholarships(), DataDir: testutil.WriteFiles(t, files), Year: 2017}
	_, err := imp.Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PA2017_D.csv")
}
