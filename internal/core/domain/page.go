package domain

// TextBlock is a positioned run of text on a page. Coordinates are
// top-left origin: smaller Y means nearer to the top of the page.
type TextBlock struct {
	Text     string
	X        float64
	Y        float64
	FontSize float64
	Bold     bool
}

// ImageRegion is a raster image embedded in a page, positioned like a
// text block. Data holds the encoded image bytes handed to OCR.
type ImageRegion struct {
	Index  int
	X      float64
	Y      float64
	Width  float64
	Height float64
	Data   []byte
}

// Table is a detected table with raw cell text per row. Rows may have
// uneven lengths; rendering pads to the widest row.
type Table struct {
	Y    float64
	Rows [][]string
}

// PageContent is everything extracted from a single page.
type PageContent struct {
	Number int
	Blocks []TextBlock
	Images []ImageRegion
	Tables []Table
}
