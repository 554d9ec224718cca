// Package extregistry is the public facade over the external registry
// providers. It composes one commercial provider for search, detail records,
// headquarters, persons and branches with one government provider for
// official excerpts, and collapses all provider failures into empty results
// plus a user-facing notice. Callers never see an error from this package.
package extregistry

import (
	"context"
	"log/slog"
	"registry-backend/lib/registry"
)

// Notices shown to the user on failure paths. Details go to the log.
const (
	noticeSearchFailed   = "Ошибка поиска организации во внешнем реестре."
	noticeFetchFailed    = "Не удалось получить данные организации из внешнего реестра."
	noticeHQFailed       = "Не удалось найти запись в реестре об открытой компании."
	noticePersonsFailed  = "Не удалось получить список связанных лиц."
	noticeBranchesFailed = "Не удалось получить список филиалов."
	noticeExcerptFailed  = "Не удалось загрузить выписку из ЕГРЮЛ."
)

// NoteStore is the host application's note storage. Notes are markdown files
// addressed by path relative to the store root.
type NoteStore interface {
	ReadNote(path string) (string, error)
}

// ExcerptDownloader is the slice of the government provider the facade needs.
type ExcerptDownloader interface {
	DownloadExcerptByTaxID(ctx context.Context, taxID string) ([]byte, error)
}

type Service struct {
	commercial registry.Provider
	government ExcerptDownloader
	notes      NoteStore
	notifier   registry.Notifier
}

type Options struct {
	Commercial registry.Provider
	Government ExcerptDownloader
	Notes      NoteStore
	Notifier   registry.Notifier
}

func New(opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = registry.LogNotifier{}
	}
	return &Service{
		commercial: opts.Commercial,
		government: opts.Government,
		notes:      opts.Notes,
		notifier:   opts.Notifier,
	}
}

func (s *Service) fail(ctx context.Context, op, notice string, err error) {
	slog.ErrorContext(ctx, "registry operation failed", "op", op, "err", err)
	s.notifier.Notify(ctx, notice)
}

func (s *Service) SearchCompany(ctx context.Context, text string) []registry.Match {
	matches, err := s.commercial.Search(ctx, text)
	if err != nil {
		s.fail(ctx, "search company", noticeSearchFailed, err)
		return []registry.Match{}
	}
	return matches
}

func (s *Service) FetchCompanyByID(ctx context.Context, id string) *registry.Record {
	record, err := s.commercial.FetchByID(ctx, id)
	if err != nil {
		s.fail(ctx, "fetch company", noticeFetchFailed, err)
		return nil
	}
	return record
}

// HQForTaxID resolves the headquarters record for a tax id. Company tax ids
// are ten digits; anything else cannot have a headquarters record and is
// answered without a network call.
func (s *Service) HQForTaxID(ctx context.Context, taxID string) *registry.Record {
	if len(taxID) != 10 {
		return nil
	}
	record, err := s.commercial.HQForTaxID(ctx, taxID)
	if err != nil {
		s.fail(ctx, "resolve headquarters", noticeHQFailed, err)
		return nil
	}
	return record
}

func (s *Service) LinkedPersonsForTaxID(ctx context.Context, taxID string) []registry.Person {
	persons, err := s.commercial.LinkedPersons(ctx, taxID)
	if err != nil {
		s.fail(ctx, "linked persons", noticePersonsFailed, err)
		return []registry.Person{}
	}
	return persons
}

func (s *Service) BranchesForTaxID(ctx context.Context, taxID string) []*registry.Record {
	branches, err := s.commercial.Branches(ctx, taxID)
	if err != nil {
		s.fail(ctx, "branches", noticeBranchesFailed, err)
		return []*registry.Record{}
	}
	return branches
}

func (s *Service) DownloadExcerptByTaxID(ctx context.Context, taxID string) []byte {
	pdf, err := s.government.DownloadExcerptByTaxID(ctx, taxID)
	if err != nil {
		s.fail(ctx, "download excerpt", noticeExcerptFailed, err)
		return nil
	}
	return pdf
}

// CompanyFromNote reverse-parses a previously written company note back into
// a record. A missing note, wrong record type or missing details section is
// not an error; the result is simply partial or empty.
func (s *Service) CompanyFromNote(ctx context.Context, path string) *registry.Record {
	content, err := s.notes.ReadNote(path)
	if err != nil {
		slog.WarnContext(ctx, "failed to read company note", "path", path, "err", err)
		return registry.NewRecord()
	}
	return ParseCompanyNote(content)
}

func (s *Service) LinkedPersonsForNote(ctx context.Context, path string) []registry.Person {
	record := s.CompanyFromNote(ctx, path)
	if record.TaxID() == "" {
		return []registry.Person{}
	}
	return s.LinkedPersonsForTaxID(ctx, record.TaxID())
}

func (s *Service) BranchesForNote(ctx context.Context, path string) []*registry.Record {
	record := s.CompanyFromNote(ctx, path)
	if record.TaxID() == "" {
		return []*registry.Record{}
	}
	return s.BranchesForTaxID(ctx, record.TaxID())
}
