package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mvanbree/palette/internal/domain"
)

func newGalleryRepoForTest(t *testing.T) GalleryRepository {
	t.Helper()
	db := newDBForTest(t, &domain.Painter{}, &domain.Painting{}, &domain.Technique{})
	return NewGalleryRepository(db)
}

func TestPainterCRUD(t *testing.T) {
	repo := newGalleryRepoForTest(t)

	p := &domain.Painter{Name: "Johannes Vermeer"}
	if err := repo.CreatePainter(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindPainterByID(p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Name != "Johannes Vermeer" {
		t.Fatalf("unexpected painter: %+v", found)
	}

	found.Name = "Jan Vermeer"
	if err := repo.UpdatePainter(found); err != nil {
		t.Fatalf("update: %v", err)
	}
	found, err = repo.FindPainterByID(p.ID)
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if found.Name != "Jan Vermeer" {
		t.Fatalf("update not persisted: %+v", found)
	}

	if err := repo.DeletePainter(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindPainterByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeletePainter(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated delete, got %v", err)
	}
}

func TestListPaintersPagingAndFilter(t *testing.T) {
	repo := newGalleryRepoForTest(t)

	for i := 0; i < 5; i++ {
		if err := repo.CreatePainter(&domain.Painter{Name: fmt.Sprintf("Monet %d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.CreatePainter(&domain.Painter{Name: "Rembrandt"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := repo.ListPainters(PainterListQuery{PageRequest: PageRequest{Page: 1, PageSize: 2}, Name: "Monet"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if page.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", page.TotalPages)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}
	if page.Items[0].Name != "Monet 0" {
		t.Fatalf("expected name ordering, got %q first", page.Items[0].Name)
	}
}

func TestPaintingWithTechniques(t *testing.T) {
	repo := newGalleryRepoForTest(t)

	painter := &domain.Painter{Name: "Caravaggio"}
	if err := repo.CreatePainter(painter); err != nil {
		t.Fatalf("create painter: %v", err)
	}
	oil := &domain.Technique{Name: "oil on canvas"}
	if err := repo.CreateTechnique(oil); err != nil {
		t.Fatalf("create technique: %v", err)
	}

	year := 1599
	painting := &domain.Painting{
		Title:      "Judith Beheading Holofernes",
		Year:       &year,
		PainterID:  painter.ID,
		Techniques: []domain.Technique{*oil},
	}
	if err := repo.CreatePainting(painting); err != nil {
		t.Fatalf("create painting: %v", err)
	}

	found, err := repo.FindPaintingByID(painting.ID)
	if err != nil {
		t.Fatalf("find painting: %v", err)
	}
	if len(found.Techniques) != 1 || found.Techniques[0].Name != "oil on canvas" {
		t.Fatalf("expected technique preloaded, got %+v", found.Techniques)
	}

	byPainter, err := repo.ListPaintingsByPainter(painter.ID)
	if err != nil {
		t.Fatalf("list by painter: %v", err)
	}
	if len(byPainter) != 1 {
		t.Fatalf("expected 1 painting, got %d", len(byPainter))
	}
}
