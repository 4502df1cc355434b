package tiff

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/dbehnke/gofax/internal/t4"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tif")

	rows := [][]byte{
		{0x00, 0x00},
		{0xFF, 0xFF},
		{0x0F, 0xF0},
	}
	const width = 16

	w := NewWriter()
	if err := w.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.SetRemoteIdentifier("REMOTE ID")
	w.SetSubAddress("4242")
	if err := w.StartPage(width, 7721, 7721); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	for _, r := range rows {
		if err := w.PutRow(r); err != nil {
			t.Fatalf("PutRow: %v", err)
		}
	}
	if err := w.EndPage(t4.Compression2D, t4.QualityGood); err != nil {
		t.Fatalf("EndPage: %v", err)
	}
	// Second page, exercising the multi-page IFD chain and PageNumber patch.
	if err := w.StartPage(width, 7721, 7721); err != nil {
		t.Fatalf("StartPage(2): %v", err)
	}
	for _, r := range rows {
		if err := w.PutRow(r); err != nil {
			t.Fatalf("PutRow(2): %v", err)
		}
	}
	if err := w.EndPage(t4.CompressionMMR, t4.QualityGood); err != nil {
		t.Fatalf("EndPage(2): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := NewReader()
	if err := r.Open(path); err != nil {
		t.Fatalf("reader Open: %v", err)
	}
	defer r.Close()

	for page := 0; page < 2; page++ {
		gotWidth, xres, yres, ok := r.StartPage()
		if !ok {
			t.Fatalf("page %d: StartPage reported no more pages", page)
		}
		if gotWidth != width {
			t.Errorf("page %d: width = %d, want %d", page, gotWidth, width)
		}
		if xres != 7721 || yres != 7721 {
			t.Errorf("page %d: resolution = (%d,%d), want (7721,7721)", page, xres, yres)
		}
		for i, want := range rows {
			got, ok := r.Row()
			if !ok {
				t.Fatalf("page %d row %d: Row reported end of page early", page, i)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("page %d row %d = %x, want %x", page, i, got, want)
			}
		}
		if _, ok := r.Row(); ok {
			t.Errorf("page %d: expected end of page after %d rows", page, len(rows))
		}
		r.EndPage()
	}

	if _, _, _, ok := r.StartPage(); ok {
		t.Error("expected no third page")
	}
}
