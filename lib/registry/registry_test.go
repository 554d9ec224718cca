package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func branchRecord(okopf string) *Record {
	r := NewRecord()
	r.SetText(KeyName, "ООО Ромашка")
	if okopf != "" {
		r.SetText(KeyLegalForm, okopf)
	}
	return r
}

func TestIsBranch(t *testing.T) {
	testCases := []struct {
		okopf    string
		expected bool
	}{
		{"30001xxxx", true},
		{"30002", true},
		{"30003123", true},
		{"30004000", true},
		{"40002xxxx", false},
		{"12300", false},
		// no legal-form code at all is always treated as HQ
		{"", false},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, IsBranch(branchRecord(test.okopf)), "ОКОПФ=%q", test.okopf)
	}

	require.False(t, IsBranch(nil))
}

type countingNotifier struct {
	messages []string
}

func (n *countingNotifier) Notify(_ context.Context, message string) {
	n.messages = append(n.messages, message)
}

func TestSearchTooShortSkipsFetch(t *testing.T) {
	notifier := &countingNotifier{}
	c := NewCaching(CachingOptions{Notifier: notifier})

	fetches := 0
	matches, err := c.Search(context.Background(), "Ро", func(context.Context, string) ([]Match, error) {
		fetches++
		return nil, nil
	})
	require.NoError(t, err)
	require.Empty(t, matches)
	require.Equal(t, 0, fetches)
	require.Len(t, notifier.messages, 1)
}

func TestSearchCachedOnSecondCall(t *testing.T) {
	c := NewCaching(CachingOptions{})

	fetches := 0
	fetch := func(context.Context, string) ([]Match, error) {
		fetches++
		return []Match{{ID: "100", ShortName: "ООО РОМАШКА", TaxID: "7700000000"}}, nil
	}

	first, err := c.Search(context.Background(), "ROMASHKA", fetch)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "ROMASHKA", fetch)
	require.NoError(t, err)

	require.Equal(t, 1, fetches)
	require.Equal(t, first, second)
}

func TestSearchEmptyResultNotCached(t *testing.T) {
	c := NewCaching(CachingOptions{})

	fetches := 0
	fetch := func(context.Context, string) ([]Match, error) {
		fetches++
		return []Match{}, nil
	}

	_, err := c.Search(context.Background(), "nothing here", fetch)
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "nothing here", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestSearchErrorPropagates(t *testing.T) {
	c := NewCaching(CachingOptions{})

	boom := errors.New("upstream gone")
	_, err := c.Search(context.Background(), "ROMASHKA", func(context.Context, string) ([]Match, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestFetchByIDCached(t *testing.T) {
	c := NewCaching(CachingOptions{})

	fetches := 0
	fetch := func(context.Context, string) (*Record, error) {
		fetches++
		r := NewRecord()
		r.SetText(KeyTaxID, "7700000000")
		return r, nil
	}

	first, err := c.FetchByID(context.Background(), "100", fetch)
	require.NoError(t, err)
	second, err := c.FetchByID(context.Background(), "100", fetch)
	require.NoError(t, err)
	require.Equal(t, 1, fetches)
	require.Same(t, first, second)
}

func TestRecordOrderAndClone(t *testing.T) {
	r := NewRecord()
	r.SetText(KeyName, "ООО Ромашка")
	r.SetText(KeyTaxID, "7700000000")
	r.SetBool(KeyStatusActive, true)
	okved := NewRecord()
	okved.Set(KeyOKVEDPrimary, PairsValue([]Pair{{Code: "62.01", Description: "Разработка ПО"}}))
	r.Set(KeyOKVED, NestedValue(okved))

	require.Equal(t, []string{KeyName, KeyTaxID, KeyStatusActive, KeyOKVED}, r.Keys())

	clone := r.Clone()
	require.Equal(t, r.Keys(), clone.Keys())

	// mutating the clone must not leak into the original
	clone.SetText(KeyTaxID, "0000000000")
	nested, _ := clone.Get(KeyOKVED)
	nested.Nested.SetText("extra", "x")

	require.Equal(t, "7700000000", r.TaxID())
	original, _ := r.Get(KeyOKVED)
	require.False(t, original.Nested.Has("extra"))
}

func TestSetIfAbsent(t *testing.T) {
	r := NewRecord()
	r.SetText(KeyOKPO, "12345678")
	r.SetIfAbsent(KeyOKPO, TextValue("87654321"))
	require.Equal(t, "12345678", r.Text(KeyOKPO))
}
