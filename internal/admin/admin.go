// Package admin manages categories and nominees through the awards API and
// keeps the nomination links between them in step.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/metrics"
	"github.com/maaaruch/tg-awards-bot/internal/tally"
)

var (
	ErrNomineeExists = errors.New("nominee already exists")
	ErrNoCategories  = errors.New("create a category first")
	ErrEmptyName     = errors.New("name is required")
)

// LinkMode selects how nominees are attached to categories.
type LinkMode string

const (
	// LinkModeNominations creates nominees once and links them through
	// nomination records.
	LinkModeNominations LinkMode = "nominations"
	// LinkModeDirect creates one nominee per category carrying category_id.
	LinkModeDirect LinkMode = "direct"
)

func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LinkModeNominations:
		return LinkModeNominations, nil
	case LinkModeDirect:
		return LinkModeDirect, nil
	default:
		return "", fmt.Errorf("unknown link mode %q", s)
	}
}

type API interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name string) (domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, patch api.CategoryPatch) error
	DeleteCategory(ctx context.Context, id int64) error
	ListNominees(ctx context.Context) ([]domain.Nominee, error)
	CreateNominee(ctx context.Context, in api.NomineeInput) (domain.Nominee, error)
	RenameNominee(ctx context.Context, id int64, name string) error
	DeleteNominee(ctx context.Context, id int64) error
	ListNominations(ctx context.Context) ([]domain.Nomination, error)
	CreateNomination(ctx context.Context, n domain.Nomination) error
}

// Catalog is the admin listing: categories with their linked nominees and
// every nominee known to the server.
type Catalog struct {
	Categories []domain.CategoryWithNominees
	Nominees   []domain.Nominee
}

// LinkReport counts the link requests of one batch.
type LinkReport struct {
	Requested int
	Failed    int
}

type Service struct {
	API     API
	Mode    LinkMode
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewService(client API, mode LinkMode, m *metrics.Metrics, logger *slog.Logger) *Service {
	if mode == "" {
		mode = LinkModeNominations
	}
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{API: client, Mode: mode, Metrics: m, Logger: logger}
}

// Load fetches the catalog. Only the category listing is required; missing
// nominees or nominations degrade to empty lists.
func (s *Service) Load(ctx context.Context) (Catalog, error) {
	cats, err := s.API.ListCategories(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("list categories: %w", err)
	}

	nominees, err := s.API.ListNominees(ctx)
	if err != nil {
		s.Logger.Warn("nominee listing failed", "error", err)
		nominees = []domain.Nominee{}
	}
	links, err := s.API.ListNominations(ctx)
	if err != nil {
		s.Logger.Warn("nomination listing failed", "error", err)
		links = nil
	}

	return Catalog{
		Categories: tally.GroupByCategory(cats, nominees, links),
		Nominees:   nominees,
	}, nil
}

// AddCategory creates a category. In nominations mode every known nominee is
// then linked to it; link failures are reported, the category stays.
func (s *Service) AddCategory(ctx context.Context, name string) (domain.Category, LinkReport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, LinkReport{}, ErrEmptyName
	}
	cat, err := s.API.CreateCategory(ctx, name)
	if err != nil {
		return domain.Category{}, LinkReport{}, fmt.Errorf("create category: %w", err)
	}
	if s.Mode != LinkModeNominations {
		return cat, LinkReport{}, nil
	}

	nominees, err := s.API.ListNominees(ctx)
	if err != nil {
		return cat, LinkReport{}, fmt.Errorf("list nominees: %w", err)
	}
	links := make([]domain.Nomination, 0, len(nominees))
	for _, n := range nominees {
		links = append(links, domain.Nomination{CategoryID: cat.ID, NomineeID: n.ID})
	}
	report, err := s.link(ctx, links)
	return cat, report, err
}

// AddNominee creates a nominee and attaches it to every category.
//
// In nominations mode the nominee is created once and linked per category.
// In direct mode one nominee is created per category; the first one is
// returned.
func (s *Service) AddNominee(ctx context.Context, name string) (domain.Nominee, LinkReport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Nominee{}, LinkReport{}, ErrEmptyName
	}
	cats, err := s.API.ListCategories(ctx)
	if err != nil {
		return domain.Nominee{}, LinkReport{}, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) == 0 {
		return domain.Nominee{}, LinkReport{}, ErrNoCategories
	}

	if s.Mode == LinkModeDirect {
		return s.addNomineeDirect(ctx, name, cats)
	}

	n, err := s.API.CreateNominee(ctx, api.NomineeInput{Name: name})
	if err != nil {
		return domain.Nominee{}, LinkReport{}, nomineeErr(err)
	}
	links := make([]domain.Nomination, 0, len(cats))
	for _, c := range cats {
		links = append(links, domain.Nomination{CategoryID: c.ID, NomineeID: n.ID})
	}
	report, err := s.link(ctx, links)
	return n, report, err
}

func (s *Service) addNomineeDirect(ctx context.Context, name string, cats []domain.Category) (domain.Nominee, LinkReport, error) {
	var (
		mu      sync.Mutex
		first   domain.Nominee
		firstAt = len(cats)
		report  = LinkReport{Requested: len(cats)}
		errs    []error
	)

	var g errgroup.Group
	for i, c := range cats {
		g.Go(func() error {
			n, err := s.API.CreateNominee(ctx, api.NomineeInput{Name: name, CategoryID: c.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				errs = append(errs, fmt.Errorf("category %d: %w", c.ID, nomineeErr(err)))
				return nil
			}
			if i < firstAt {
				first, firstAt = n, i
			}
			return nil
		})
	}
	_ = g.Wait()

	s.countLinks(report)
	if report.Failed == report.Requested {
		return domain.Nominee{}, report, errors.Join(errs...)
	}
	if report.Failed > 0 {
		return first, report, fmt.Errorf("%d of %d links failed: %w", report.Failed, report.Requested, errors.Join(errs...))
	}
	return first, report, nil
}

// link issues every link concurrently and waits for all of them. Nothing is
// retried or rolled back.
func (s *Service) link(ctx context.Context, links []domain.Nomination) (LinkReport, error) {
	report := LinkReport{Requested: len(links)}
	if len(links) == 0 {
		return report, nil
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, l := range links {
		g.Go(func() error {
			if err := s.API.CreateNomination(ctx, l); err != nil {
				mu.Lock()
				report.Failed++
				errs = append(errs, fmt.Errorf("link %d->%d: %w", l.NomineeID, l.CategoryID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.countLinks(report)
	if report.Failed > 0 {
		s.Logger.Warn("nomination links failed", "failed", report.Failed, "requested", report.Requested)
		return report, fmt.Errorf("%d of %d links failed: %w", report.Failed, report.Requested, errors.Join(errs...))
	}
	return report, nil
}

func (s *Service) countLinks(r LinkReport) {
	s.Metrics.Links.WithLabelValues("ok").Add(float64(r.Requested - r.Failed))
	s.Metrics.Links.WithLabelValues("failed").Add(float64(r.Failed))
}

func nomineeErr(err error) error {
	if api.IsConflict(err) {
		return fmt.Errorf("%w: %w", ErrNomineeExists, err)
	}
	return fmt.Errorf("create nominee: %w", err)
}

func (s *Service) SetDescription(ctx context.Context, categoryID int64, text string) error {
	text = strings.TrimSpace(text)
	return s.API.UpdateCategory(ctx, categoryID, api.CategoryPatch{Description: &text})
}

func (s *Service) RenameCategory(ctx context.Context, categoryID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return s.API.UpdateCategory(ctx, categoryID, api.CategoryPatch{Name: &name})
}

// DeleteCategory removes the category; the server drops its links and votes.
func (s *Service) DeleteCategory(ctx context.Context, categoryID int64) error {
	return s.API.DeleteCategory(ctx, categoryID)
}

func (s *Service) RenameNominee(ctx context.Context, nomineeID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := s.API.RenameNominee(ctx, nomineeID, name); err != nil {
		if api.IsConflict(err) {
			return fmt.Errorf("%w: %w", ErrNomineeExists, err)
		}
		return err
	}
	return nil
}

// DeleteNominee removes the nominee; the server drops its links and votes.
func (s *Service) DeleteNominee(ctx context.Context, nomineeID int64) error {
	return s.API.DeleteNominee(ctx, nomineeID)
}
