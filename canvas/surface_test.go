package canvas

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func TestCreate(t *testing.T) {
	f := NewFactory()

	s, err := f.Create(20, 10)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.Width() != 20 || s.Height() != 10 {
		t.Errorf("Expected 20x10, got %dx%d", s.Width(), s.Height())
	}
	if s.Context() == nil {
		t.Error("Context should be bound after create")
	}
	if got := s.Context().Bounds(); got != image.Rect(0, 0, 20, 10) {
		t.Errorf("Unexpected bounds %v", got)
	}
	if f.Live() != 1 {
		t.Errorf("Expected 1 live surface, got %d", f.Live())
	}
}

func TestCreateInvalidDimension(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative width", -1, 10},
		{"negative height", 10, -5},
		{"both zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory()
			s, err := f.Create(tt.width, tt.height)
			if !errors.Is(err, ErrInvalidDimension) {
				t.Fatalf("Expected ErrInvalidDimension, got %v", err)
			}
			if s != nil {
				t.Error("No surface should be returned")
			}
			if f.Live() != 0 {
				t.Errorf("Nothing should be allocated, live=%d", f.Live())
			}
		})
	}
}

func TestResetResizesAndClears(t *testing.T) {
	f := NewFactory()
	s, err := f.Create(4, 4)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Context().Fill(color.NRGBA{R: 255, A: 255}); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	if err := f.Reset(s, 8, 2); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if s.Width() != 8 || s.Height() != 2 {
		t.Errorf("Expected 8x2 after reset, got %dx%d", s.Width(), s.Height())
	}
	if got := s.Image().NRGBAAt(0, 0); got != (color.NRGBA{}) {
		t.Errorf("Reset should clear previous content, got %v", got)
	}
}

func TestResetInvalidDimensionLeavesSurfaceUntouched(t *testing.T) {
	f := NewFactory()
	s, _ := f.Create(4, 4)
	red := color.NRGBA{R: 255, A: 255}
	s.Context().Fill(red)

	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-3, -3}} {
		err := f.Reset(s, dims[0], dims[1])
		if !errors.Is(err, ErrInvalidDimension) {
			t.Errorf("Reset(%d,%d): expected ErrInvalidDimension, got %v", dims[0], dims[1], err)
		}
	}
	if s.Width() != 4 || s.Height() != 4 {
		t.Errorf("Surface resized by failed reset: %dx%d", s.Width(), s.Height())
	}
	if got := s.Image().NRGBAAt(1, 1); got != red {
		t.Errorf("Surface content changed by failed reset: %v", got)
	}
}

func TestResetUninitialized(t *testing.T) {
	f := NewFactory()
	if err := f.Reset(nil, 4, 4); !errors.Is(err, ErrSurfaceNotInitialized) {
		t.Errorf("Expected ErrSurfaceNotInitialized for nil surface, got %v", err)
	}

	s, _ := f.Create(4, 4)
	f.Destroy(s)
	if err := f.Reset(s, 4, 4); !errors.Is(err, ErrSurfaceNotInitialized) {
		t.Errorf("Expected ErrSurfaceNotInitialized for destroyed surface, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	f := NewFactory()
	s, _ := f.Create(4, 4)
	ctx := s.Context()

	if err := f.Destroy(s); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if s.Width() != 0 || s.Height() != 0 {
		t.Errorf("Expected zero dimensions, got %dx%d", s.Width(), s.Height())
	}
	if s.Image() != nil || s.Context() != nil {
		t.Error("Buffer and context should be released")
	}
	if err := ctx.Fill(color.Black); !errors.Is(err, ErrSurfaceNotInitialized) {
		t.Errorf("Stale context should fail, got %v", err)
	}
	if f.Live() != 0 {
		t.Errorf("Expected no live surfaces, got %d", f.Live())
	}

	if err := f.Destroy(s); !errors.Is(err, ErrSurfaceNotInitialized) {
		t.Errorf("Second destroy should fail with ErrSurfaceNotInitialized, got %v", err)
	}
	if f.Live() != 0 {
		t.Errorf("Second destroy must not change the live count, got %d", f.Live())
	}
}

func TestWithReleasesOnEveryPath(t *testing.T) {
	f := NewFactory()

	t.Run("success", func(t *testing.T) {
		var kept *Surface
		err := f.With(3, 3, func(s *Surface) error {
			kept = s
			return nil
		})
		if err != nil {
			t.Fatalf("With failed: %v", err)
		}
		if kept.Image() != nil {
			t.Error("Surface should be destroyed after With returns")
		}
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		err := f.With(3, 3, func(s *Surface) error { return boom })
		if !errors.Is(err, boom) {
			t.Errorf("Expected callback error, got %v", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		f.With(3, 3, func(s *Surface) error { panic("render crashed") })
	})

	t.Run("invalid", func(t *testing.T) {
		called := false
		err := f.With(0, 3, func(s *Surface) error {
			called = true
			return nil
		})
		if !errors.Is(err, ErrInvalidDimension) || called {
			t.Errorf("Expected ErrInvalidDimension without calling fn, got %v called=%v", err, called)
		}
	})

	if f.Live() != 0 {
		t.Errorf("Expected no live surfaces, got %d", f.Live())
	}
}

func TestDrawImageScalesToSurface(t *testing.T) {
	f := NewFactory()
	s, _ := f.Create(10, 6)

	blue := color.NRGBA{B: 255, A: 255}
	src := imaging.New(5, 3, blue)
	if err := s.Context().DrawImage(src); err != nil {
		t.Fatalf("DrawImage failed: %v", err)
	}
	for _, p := range []image.Point{{0, 0}, {9, 5}, {5, 3}} {
		if got := s.Image().NRGBAAt(p.X, p.Y); got != blue {
			t.Errorf("Pixel %v: expected %v, got %v", p, blue, got)
		}
	}
}

func TestEncodePNG(t *testing.T) {
	f := NewFactory()
	s, _ := f.Create(2, 2)
	green := color.NRGBA{G: 255, A: 255}
	s.Context().Fill(green)

	data, err := s.Encode(imaging.PNG)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	r, g, b, a := img.At(1, 1).RGBA()
	if r != 0 || g != 0xffff || b != 0 || a != 0xffff {
		t.Errorf("Unexpected decoded pixel %v", img.At(1, 1))
	}

	f.Destroy(s)
	if _, err := s.Encode(imaging.PNG); !errors.Is(err, ErrSurfaceNotInitialized) {
		t.Errorf("Encoding a destroyed surface should fail, got %v", err)
	}
}
