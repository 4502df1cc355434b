package t4

// ImageSource is implemented by the page supplier on the transmit side.
// TIFF/F on-disk representation is outside this module's scope (spec.md
// §1); callers hand the codec any ImageSource, typically the file-backed
// reader in internal/tiff.
type ImageSource interface {
	// Open prepares the source for reading (e.g. opens a TIFF/F file).
	Open(path string) error
	// StartPage selects the next page and reports its geometry.
	StartPage() (width, xres, yres int, ok bool)
	// Row returns the packed bytes for the next row of the current page,
	// or ok=false once the page is exhausted.
	Row() (row []byte, ok bool)
	// EndPage finishes the current page.
	EndPage()
	Close() error
}

// ImageSink is implemented by the page consumer on the receive side.
type ImageSink interface {
	Open(path string) error
	// StartPage begins a new page with the given geometry.
	StartPage(width, xres, yres int) error
	// PutRow appends one decoded row.
	PutRow(row []byte) error
	// EndPage finishes the current page, recording the compression used
	// and the copy quality observed.
	EndPage(compression Compression, quality Quality) error
	Close() error

	SetRemoteIdentifier(id string)
	SetHeaderInfo(info string)
}
