package catalog

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
)

// ItemOptions selects optional parts of the single-item payload.
type ItemOptions struct {
	Raw       bool
	Fields    bool
	Images    bool
	Watermark int
	Absolute  bool
}

// ImageView is an image with its viewer URLs.
type ImageView struct {
	variant.Image
	URL    string
	URLRaw string
}

// ItemView is a resolved variant. Images is nil unless requested.
type ItemView struct {
	Item       variant.Item
	WithFields bool
	Images     []ImageView
}

// Item looks up one visible variant by id, uid or slug.
func (s *Service) Item(ctx context.Context, key variant.Key, opts ItemOptions) (ItemView, error) {
	allowed, err := s.scope(ctx)
	if err != nil {
		return ItemView{}, err
	}
	if len(allowed) == 0 {
		return ItemView{}, fmt.Errorf("variant %s: %w", key.Token(), domain.ErrNotFound)
	}

	var row variant.Row
	err = s.observe(ctx, "item", func(ctx context.Context) error {
		row, err = s.repo.FindByKey(ctx, allowed, key)
		return err
	})
	if err != nil {
		return ItemView{}, err
	}

	view := ItemView{Item: s.assemble(row), WithFields: opts.Fields}
	if opts.Raw {
		view.Item.Raw = row
	}
	if opts.Images {
		view.Images = []ImageView{}
		if view.Item.ArticleID > 0 {
			if view.Images, err = s.images(ctx, view.Item.ArticleID, opts.Watermark, opts.Absolute); err != nil {
				return ItemView{}, err
			}
		}
	}
	return view, nil
}

// Images lists the images of a visible variant in display order.
func (s *Service) Images(ctx context.Context, variantID int64, wm int, abs bool) ([]ImageView, error) {
	allowed, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("variant %d: %w", variantID, domain.ErrNotFound)
	}

	var ok bool
	err = s.observe(ctx, "exists", func(ctx context.Context) error {
		ok, err = s.repo.Exists(ctx, allowed, variantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("variant %d: %w", variantID, domain.ErrNotFound)
	}
	return s.images(ctx, variantID, wm, abs)
}

func (s *Service) images(ctx context.Context, variantID int64, wm int, abs bool) ([]ImageView, error) {
	var images []variant.Image
	err := s.observe(ctx, "images", func(ctx context.Context) error {
		var err error
		images, err = s.repo.Images(ctx, variantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]ImageView, 0, len(images))
	for _, img := range images {
		if img.ImageID <= 0 {
			continue
		}
		out = append(out, ImageView{
			Image:  img,
			URL:    s.cfg.Images.URL(img.ImageID, wm, abs),
			URLRaw: s.cfg.Images.URL(img.ImageID, 0, abs),
		})
	}
	return out, nil
}

// assemble builds the public item from a projected row.
func (s *Service) assemble(row variant.Row) variant.Item {
	source := row.String("metal")
	if source == "" {
		source = row.String("material_value")
	}
	item := variant.Item{
		ArticleID:      row.Int64("article_id"),
		UID:            row.String("uid"),
		Slug:           row.String("slug"),
		Title:          variant.Title(row, s.cfg.TitleLanguages),
		Region:         row.String("region_code"),
		MaterialSource: source,
	}
	if canonical, ok := s.materials.Normalize(source); ok {
		item.Material = canonical
	}
	return item
}
