package pages

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/tiling"
)

// Allocator owns the backing textures of a page set.
type Allocator interface {
	Allocate(index int, p Page) error
	Release(index int, p Page)
}

// Set is the cached page list of one capture target. It is rebuilt as a
// whole: readers see either the old pages or the new ones.
type Set struct {
	MaxViewsPerPage int
	MaxTextureDim   int

	mu      sync.RWMutex
	alloc   Allocator
	pages   []Page
	quality tiling.Quality
	single  bool
	views   int
	dim     int
	built   bool
	builds  int
}

func NewSet(alloc Allocator) *Set {
	return &Set{
		MaxViewsPerPage: DefaultMaxViewsPerPage,
		MaxTextureDim:   DefaultMaxTextureDimension,
		alloc:           alloc,
	}
}

func (s *Set) maxViews(single bool) int {
	if single {
		return 1
	}
	if s.MaxViewsPerPage < 1 {
		return DefaultMaxViewsPerPage
	}
	return s.MaxViewsPerPage
}

// Build lays out pages for q. It is a no-op when q (by Equal), single and
// the effective page limits match the last successful build.
func (s *Set) Build(q tiling.Quality, single bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxViews := s.maxViews(single)
	maxDim := s.MaxTextureDim
	if maxDim < 1 {
		maxDim = DefaultMaxTextureDimension
	}
	if s.built && s.single == single && s.quality.Equal(q) && s.views == maxViews && s.dim == maxDim {
		return false, nil
	}
	if err := q.Validate(); err != nil {
		return false, err
	}
	next, err := Build(q.NumTiles(), maxViews, q.TileSizeX, q.TileSizeY, maxDim)
	if err != nil {
		return false, err
	}

	s.releaseLocked()
	if s.alloc != nil {
		for i, p := range next {
			if err := s.alloc.Allocate(i, p); err != nil {
				for j := 0; j < i; j++ {
					s.alloc.Release(j, next[j])
				}
				return false, fmt.Errorf("allocate page %d: %w", i, err)
			}
		}
	}
	s.pages = next
	s.quality = q
	s.single = single
	s.views = maxViews
	s.dim = maxDim
	s.built = true
	s.builds++
	log.Debug().
		Int("pages", len(next)).
		Int("views", q.NumTiles()).
		Int("max_views", maxViews).
		Int("max_dim", maxDim).
		Bool("single_view", single).
		Msg("pages rebuilt")
	return true, nil
}

// Release frees every page and forgets the cached layout.
func (s *Set) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Set) releaseLocked() {
	if s.alloc != nil {
		for i, p := range s.pages {
			s.alloc.Release(i, p)
		}
	}
	s.pages = nil
	s.built = false
}

// Pages returns the current layout. The slice must not be modified.
func (s *Set) Pages() []Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages
}

func (s *Set) Quality() tiling.Quality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

// Builds counts successful rebuilds.
func (s *Set) Builds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builds
}
