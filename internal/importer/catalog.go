package importer

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/flockops/safeguard/internal/logging"
	"github.com/flockops/safeguard/internal/ministrysafe"
	"github.com/flockops/safeguard/internal/store"
)

// CatalogSource is the slice of the vendor API serving catalog data.
type CatalogSource interface {
	GetPackages(ctx context.Context) ([]ministrysafe.Package, error)
	GetTags(ctx context.Context) ([]ministrysafe.Tag, error)
	GetSurveyTypes(ctx context.Context) ([]ministrysafe.SurveyType, error)
}

// CatalogStore caches vendor catalogs locally.
type CatalogStore interface {
	ReplacePackages(ctx context.Context, packages []store.CatalogPackage) error
	ReplaceTags(ctx context.Context, tags []store.CatalogTag) error
	ReplaceSurveyTypes(ctx context.Context, types []store.CatalogSurveyType) error
}

// SyncCatalogs refreshes the cached package, tag and survey type catalogs.
// The catalogs feed UI pickers, so a full replace per run keeps deletions on
// the vendor side from lingering locally.
func SyncCatalogs(ctx context.Context, source CatalogSource, dest CatalogStore, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("catalog-sync")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		packages, err := source.GetPackages(gctx)
		if err != nil {
			return err
		}
		// The numbered search levels are not vendor packages; they are seeded
		// locally so the picker always offers them.
		cached := searchLevelPackages()
		for _, p := range packages {
			cached = append(cached, store.CatalogPackage{VendorID: p.ID.Int64(), Name: p.Name, Code: p.Code})
		}
		if err := dest.ReplacePackages(gctx, cached); err != nil {
			return err
		}
		logger.Info("packages synced", "count", len(cached))
		return nil
	})

	g.Go(func() error {
		tags, err := source.GetTags(gctx)
		if err != nil {
			return err
		}
		cached := make([]store.CatalogTag, len(tags))
		for i, t := range tags {
			cached[i] = store.CatalogTag{VendorID: t.ID.Int64(), Name: t.Name}
		}
		if err := dest.ReplaceTags(gctx, cached); err != nil {
			return err
		}
		logger.Info("tags synced", "count", len(cached))
		return nil
	})

	g.Go(func() error {
		types, err := source.GetSurveyTypes(gctx)
		if err != nil {
			return err
		}
		cached := make([]store.CatalogSurveyType, len(types))
		for i, st := range types {
			cached[i] = store.CatalogSurveyType{Code: st.Code, Name: st.Name}
		}
		if err := dest.ReplaceSurveyTypes(gctx, cached); err != nil {
			return err
		}
		logger.Info("survey types synced", "count", len(cached))
		return nil
	})

	return g.Wait()
}

// searchLevelPackages returns the built-in numbered check levels.
func searchLevelPackages() []store.CatalogPackage {
	names := []string{"One", "Two", "Three", "Four", "Five", "Six", "Seven"}
	packages := make([]store.CatalogPackage, len(names))
	for i, n := range names {
		packages[i] = store.CatalogPackage{
			Name: "Search Level " + n,
			Code: "level-" + strconv.Itoa(i+1),
		}
	}
	return packages
}
