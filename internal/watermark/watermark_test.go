package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeetl/internal/store"
	"tradeetl/internal/table"
	"tradeetl/internal/util"
)

const metaKey = "meta_file.csv"

var fixedNow = time.Date(2021, time.May, 10, 14, 30, 5, 0, time.Local)

func setup(t *testing.T) (*store.MemoryStore, []string) {
	t.Helper()
	prev := now
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = prev })

	// days[i] is i days before today.
	td := civil.DateOf(fixedNow)
	days := make([]string, 10)
	for i := range days {
		days[i] = td.AddDays(-i).String()
	}
	return store.NewMemoryStore(nil), days
}

func putLog(s *store.MemoryStore, header string, rows ...string) {
	s.PutObject(metaKey, []byte(header+"\n"+strings.Join(rows, "\n")+"\n"))
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestResolveNoLog(t *testing.T) {
	s, days := setup(t)

	res, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[2]))
	require.NoError(t, err)

	assert.Equal(t, days[2], res.MinDate.String())
	// The day before first_date is included.
	assert.Equal(t, []string{days[3], days[2], days[1], days[0]}, util.FormatDates(res.Dates))
	assert.False(t, res.Empty())
}

func TestResolveGapDetection(t *testing.T) {
	s, days := setup(t)
	putLog(s, "source_date,processed_at",
		days[3]+","+days[0],
		days[4]+","+days[0],
	)

	cases := []struct {
		first   string
		minDate string
		dates   []string
	}{
		{first: days[1], minDate: days[1], dates: []string{days[2], days[1], days[0]}},
		{first: days[4], minDate: days[2], dates: []string{days[3], days[2], days[1], days[0]}},
		{first: days[7], minDate: days[7], dates: []string{days[8], days[7], days[6], days[5], days[4], days[3], days[2], days[1], days[0]}},
	}

	for _, tc := range cases {
		t.Run("first="+tc.first, func(t *testing.T) {
			res, err := Resolve(context.Background(), s, metaKey, mustDate(t, tc.first))
			require.NoError(t, err)
			assert.Equal(t, tc.minDate, res.MinDate.String())
			assert.ElementsMatch(t, tc.dates, util.FormatDates(res.Dates))
		})
	}
}

func TestResolveDatesAreAscending(t *testing.T) {
	s, days := setup(t)
	putLog(s, "source_date,processed_at", days[5]+","+days[0])

	res, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[6]))
	require.NoError(t, err)
	require.NotEmpty(t, res.Dates)
	for i := 1; i < len(res.Dates); i++ {
		assert.True(t, res.Dates[i-1].Before(res.Dates[i]), "dates out of order: %v", res.Dates)
	}
	assert.Equal(t, days[6], res.MinDate.String())
}

func TestResolveNothingToDo(t *testing.T) {
	s, days := setup(t)
	putLog(s, "source_date,processed_at",
		days[0]+","+days[0],
		days[1]+","+days[0],
	)

	res, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[0]))
	require.NoError(t, err)
	assert.Equal(t, "2200-01-01", res.MinDate.String())
	assert.Equal(t, Sentinel, res.MinDate)
	assert.Empty(t, res.Dates)
	assert.True(t, res.Empty())
}

func TestResolveToleratesDuplicates(t *testing.T) {
	s, days := setup(t)
	putLog(s, "processed_at,source_date",
		days[0]+","+days[1],
		days[0]+","+days[1],
		days[0]+","+days[0],
	)

	res, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[1]))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestResolveMalformedLog(t *testing.T) {
	s, days := setup(t)
	putLog(s, "wrong_column, processed_at",
		days[3]+","+days[0],
		days[4]+","+days[0],
	)

	_, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[1]))
	require.ErrorIs(t, err, ErrMalformedLog)
	assert.ErrorIs(t, err, table.ErrNoColumn)
	assert.NotErrorIs(t, err, ErrWrongSchema)
}

func TestResolveUnparsableDate(t *testing.T) {
	s, days := setup(t)
	putLog(s, "source_date,processed_at",
		days[3]+","+days[0],
		"16.04.2021,"+days[0],
	)

	_, err := Resolve(context.Background(), s, metaKey, mustDate(t, days[1]))
	assert.ErrorIs(t, err, ErrMalformedLog)
}

type brokenStore struct {
	store.TabularStore
	err error
}

func (b brokenStore) Read(context.Context, string) (*table.Table, error) {
	return nil, b.err
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	_, days := setup(t)
	boom := errors.New("connection refused")

	_, err := Resolve(context.Background(), brokenStore{err: boom}, metaKey, mustDate(t, days[1]))
	assert.ErrorIs(t, err, boom)

	err = Record(context.Background(), brokenStore{err: boom}, metaKey, []civil.Date{mustDate(t, days[1])})
	assert.ErrorIs(t, err, boom)
}

func readLog(t *testing.T, s *store.MemoryStore) *table.Table {
	t.Helper()
	tbl, err := s.Read(context.Background(), metaKey)
	require.NoError(t, err)
	return tbl
}

func TestRecordNoLog(t *testing.T) {
	s, _ := setup(t)
	dates := []civil.Date{mustDate(t, "2021-04-16"), mustDate(t, "2021-04-17")}

	require.NoError(t, Record(context.Background(), s, metaKey, dates))

	log := readLog(t, s)
	assert.Equal(t, []string{SourceDateColumn, ProcessedAtColumn}, log.Columns)
	src, err := log.Column(SourceDateColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021-04-16", "2021-04-17"}, src)
	processed, err := log.Column(ProcessedAtColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021-05-10 14:30:05", "2021-05-10 14:30:05"}, processed)
}

func TestRecordEmptyIsNoop(t *testing.T) {
	s, _ := setup(t)
	putLog(s, "source_date,processed_at", "2021-04-12,2021-04-12 08:00:00")
	before, _ := s.Object(metaKey)

	require.NoError(t, Record(context.Background(), s, metaKey, nil))

	after, _ := s.Object(metaKey)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, s.Writes())

	// No log is created either.
	empty := store.NewMemoryStore(nil)
	require.NoError(t, Record(context.Background(), empty, metaKey, []civil.Date{}))
	_, ok := empty.Object(metaKey)
	assert.False(t, ok)
}

func TestRecordAppends(t *testing.T) {
	s, _ := setup(t)
	putLog(s, "source_date,processed_at",
		"2021-04-12,2021-05-10 09:00:00",
		"2021-04-13,2021-05-10 09:00:00",
	)

	dates := []civil.Date{mustDate(t, "2021-04-16"), mustDate(t, "2021-04-17")}
	require.NoError(t, Record(context.Background(), s, metaKey, dates))

	entries, err := Entries(context.Background(), s, metaKey)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var got []string
	for _, e := range entries {
		got = append(got, e.SourceDate.String())
		assert.Equal(t, civil.DateOf(fixedNow), civil.DateOf(e.ProcessedAt))
	}
	assert.Equal(t, []string{"2021-04-12", "2021-04-13", "2021-04-16", "2021-04-17"}, got)
	assert.True(t, fixedNow.Equal(entries[3].ProcessedAt), "processed_at = %v", entries[3].ProcessedAt)
}

func TestRecordKeepsDuplicates(t *testing.T) {
	s, _ := setup(t)
	dates := []civil.Date{mustDate(t, "2021-04-16")}

	require.NoError(t, Record(context.Background(), s, metaKey, dates))
	require.NoError(t, Record(context.Background(), s, metaKey, dates))

	log := readLog(t, s)
	assert.Equal(t, 2, log.Len())
}

func TestRecordPreservesExistingColumnOrder(t *testing.T) {
	s, _ := setup(t)
	putLog(s, "processed_at,source_date", "2021-05-01 09:00:00,2021-04-12")

	require.NoError(t, Record(context.Background(), s, metaKey, []civil.Date{mustDate(t, "2021-04-16")}))

	log := readLog(t, s)
	assert.Equal(t, []string{ProcessedAtColumn, SourceDateColumn}, log.Columns)
	assert.Equal(t, []string{"2021-05-10 14:30:05", "2021-04-16"}, log.Rows[1])
}

func TestRecordWrongSchema(t *testing.T) {
	s, _ := setup(t)
	putLog(s, "wrong_column,processed_at",
		"2021-04-12,2021-05-10 09:00:00",
		"2021-04-13,2021-05-10",
	)
	before, _ := s.Object(metaKey)

	err := Record(context.Background(), s, metaKey, []civil.Date{mustDate(t, "2021-04-16"), mustDate(t, "2021-04-17")})
	require.ErrorIs(t, err, ErrWrongSchema)
	assert.NotErrorIs(t, err, ErrMalformedLog)

	after, _ := s.Object(metaKey)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, s.Writes())
}

func TestRecordThenResolve(t *testing.T) {
	s, days := setup(t)
	first := mustDate(t, days[5])

	res, err := Resolve(context.Background(), s, metaKey, first)
	require.NoError(t, err)
	require.Len(t, res.Dates, 7)

	require.NoError(t, Record(context.Background(), s, metaKey, res.Dates))

	res, err = Resolve(context.Background(), s, metaKey, first)
	require.NoError(t, err)
	assert.True(t, res.Empty(), "expected nothing left, got %v", res.Dates)
}

func TestEntries(t *testing.T) {
	s, _ := setup(t)

	_, err := Entries(context.Background(), s, metaKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	putLog(s, "source_date,processed_at", "2021-04-12,2021-04-13")
	entries, err := Entries(context.Background(), s, metaKey)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2021-04-13", civil.DateOf(entries[0].ProcessedAt).String())

	putLog(s, "source_date", "2021-04-12")
	_, err = Entries(context.Background(), s, metaKey)
	assert.ErrorIs(t, err, ErrMalformedLog)
}

func Example() {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	s.PutObject(metaKey, []byte("source_date,processed_at\n2021-04-12,2021-04-13 06:00:00\n"))

	entries, _ := Entries(ctx, s, metaKey)
	fmt.Println(entries[0].SourceDate)
	// Output: 2021-04-12
}
