package extregistry

import (
	"context"
	"errors"
	"registry-backend/lib/registry"
	"testing"

	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream gone")

// fakeProvider returns canned results, or fails everything when broken.
type fakeProvider struct {
	broken  bool
	matches []registry.Match
	record  *registry.Record
	persons []registry.Person
	hqCalls int
}

func (p *fakeProvider) Search(context.Context, string) ([]registry.Match, error) {
	if p.broken {
		return nil, errUpstream
	}
	return p.matches, nil
}

func (p *fakeProvider) FetchByID(context.Context, string) (*registry.Record, error) {
	if p.broken {
		return nil, errUpstream
	}
	return p.record, nil
}

func (p *fakeProvider) HQForTaxID(context.Context, string) (*registry.Record, error) {
	p.hqCalls++
	if p.broken {
		return nil, errUpstream
	}
	return p.record, nil
}

func (p *fakeProvider) LinkedPersons(context.Context, string) ([]registry.Person, error) {
	if p.broken {
		return nil, errUpstream
	}
	return p.persons, nil
}

func (p *fakeProvider) Branches(context.Context, string) ([]*registry.Record, error) {
	if p.broken {
		return nil, errUpstream
	}
	return []*registry.Record{p.record}, nil
}

type fakeExcerpts struct {
	broken bool
	pdf    []byte
	calls  int
}

func (e *fakeExcerpts) DownloadExcerptByTaxID(context.Context, string) ([]byte, error) {
	e.calls++
	if e.broken {
		return nil, errUpstream
	}
	return e.pdf, nil
}

type mapNotes map[string]string

func (m mapNotes) ReadNote(path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", errors.New("no such note")
	}
	return content, nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.messages = append(n.messages, message)
}

func newTestService(provider *fakeProvider, excerpts *fakeExcerpts, notes mapNotes) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return New(Options{
		Commercial: provider,
		Government: excerpts,
		Notes:      notes,
		Notifier:   notifier,
	}), notifier
}

func TestFailuresCollapseToEmptyResults(t *testing.T) {
	provider := &fakeProvider{broken: true}
	excerpts := &fakeExcerpts{broken: true}
	service, notifier := newTestService(provider, excerpts, mapNotes{})
	ctx := context.Background()

	require.Empty(t, service.SearchCompany(ctx, "ромашка"))
	require.Nil(t, service.FetchCompanyByID(ctx, "100"))
	require.Nil(t, service.HQForTaxID(ctx, "7701234567"))
	require.Empty(t, service.LinkedPersonsForTaxID(ctx, "7701234567"))
	require.Empty(t, service.BranchesForTaxID(ctx, "7701234567"))
	require.Nil(t, service.DownloadExcerptByTaxID(ctx, "7701234567"))

	require.Equal(t, []string{
		noticeSearchFailed,
		noticeFetchFailed,
		noticeHQFailed,
		noticePersonsFailed,
		noticeBranchesFailed,
		noticeExcerptFailed,
	}, notifier.messages)
}

func TestHappyPathDelegation(t *testing.T) {
	record := registry.NewRecord()
	record.SetText(registry.KeyTaxID, "7701234567")
	provider := &fakeProvider{
		matches: []registry.Match{{ID: "100", ShortName: `ООО "РОМАШКА"`, TaxID: "7701234567"}},
		record:  record,
		persons: []registry.Person{{FullName: "Иванов Иван Иванович"}},
	}
	excerpts := &fakeExcerpts{pdf: []byte("%PDF-1.4")}
	service, notifier := newTestService(provider, excerpts, mapNotes{})
	ctx := context.Background()

	require.Len(t, service.SearchCompany(ctx, "ромашка"), 1)
	require.Same(t, record, service.FetchCompanyByID(ctx, "100"))
	require.Same(t, record, service.HQForTaxID(ctx, "7701234567"))
	require.Len(t, service.LinkedPersonsForTaxID(ctx, "7701234567"), 1)
	require.Len(t, service.BranchesForTaxID(ctx, "7701234567"), 1)
	require.Equal(t, []byte("%PDF-1.4"), service.DownloadExcerptByTaxID(ctx, "7701234567"))
	require.Empty(t, notifier.messages)
}

func TestHQRejectsMalformedTaxID(t *testing.T) {
	provider := &fakeProvider{}
	service, notifier := newTestService(provider, &fakeExcerpts{}, mapNotes{})

	// a twelve-digit id belongs to a person, not a company
	require.Nil(t, service.HQForTaxID(context.Background(), "770123456789"))
	require.Nil(t, service.HQForTaxID(context.Background(), "77012"))
	require.Equal(t, 0, provider.hqCalls)
	require.Empty(t, notifier.messages)
}

func TestCompanyFromNoteMissingFile(t *testing.T) {
	service, _ := newTestService(&fakeProvider{}, &fakeExcerpts{}, mapNotes{})
	record := service.CompanyFromNote(context.Background(), "нет/такой/заметки.md")
	require.NotNil(t, record)
	require.Equal(t, 0, record.Len())
}

func TestLinkedPersonsForNote(t *testing.T) {
	provider := &fakeProvider{persons: []registry.Person{{FullName: "Иванов Иван Иванович"}}}
	notes := mapNotes{
		"Ромашка/Ромашка_HQ.md": sampleNote,
		"Без_ИНН.md":            "---\nrecord_type: company_HQ\n---\n# пусто\n",
	}
	service, _ := newTestService(provider, &fakeExcerpts{}, notes)
	ctx := context.Background()

	persons := service.LinkedPersonsForNote(ctx, "Ромашка/Ромашка_HQ.md")
	require.Len(t, persons, 1)

	// a note without a tax id cannot be linked to anything
	require.Empty(t, service.LinkedPersonsForNote(ctx, "Без_ИНН.md"))
}

func TestBranchesForNote(t *testing.T) {
	record := registry.NewRecord()
	record.SetText(registry.KeyLegalForm, "3000123")
	provider := &fakeProvider{record: record}
	service, _ := newTestService(provider, &fakeExcerpts{}, mapNotes{
		"Ромашка/Ромашка_HQ.md": sampleNote,
	})

	branches := service.BranchesForNote(context.Background(), "Ромашка/Ромашка_HQ.md")
	require.Len(t, branches, 1)
	require.Same(t, record, branches[0])
}
