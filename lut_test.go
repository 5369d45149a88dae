package rasterview

import (
	"bufio"
	"bytes"
	"image"
	"math"
	"strings"
	"testing"
)

func greyStretch(minVal, maxVal float64) *Stretch {
	s := &Stretch{}
	s.SetGreyScale()
	s.SetBands([]int{1})
	s.SetLinearStretch(minVal, maxVal)
	return s
}

func rgbStretch() *Stretch {
	s := &Stretch{}
	s.SetRGB()
	s.SetBands([]int{1, 2, 3})
	s.SetLinearStretch(0, 255)
	return s
}

// singleLUTInfo extracts the scaling info of a single band LUT through its
// serialized form.
func singleLUTInfo(t *testing.T, l *ViewerLUT) *BandLUTInfo {
	t.Helper()
	var buf bytes.Buffer
	if err := l.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	r := bufio.NewReader(&buf)
	if _, err := r.ReadString('\n'); err != nil {
		t.Fatalf("reading header: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading info: %v", err)
	}
	info, err := BandLUTInfoFromJSON(line)
	if err != nil {
		t.Fatalf("parsing info: %v", err)
	}
	return info
}

func pixAt(img *image.RGBA, x, y int) RGBA {
	off := img.PixOffset(x, y)
	return RGBA{img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3]}
}

func imageMask(vals ...uint8) []uint8 { return vals }

func TestCreateLUTLinear(t *testing.T) {
	src := newMemSource(2, 2, 1)
	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, greyStretch(0, 255), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	block := blockFrom(2, 2, []float64{0, 128, 255, 300})
	mask := imageMask(MaskImage, MaskImage, MaskImage, MaskImage)
	img, err := lut.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}

	wantGrey := []uint8{0, 128, 255, 255}
	for i, want := range wantGrey {
		got := pixAt(img, i%2, i/2)
		if got != (RGBA{want, want, want, 255}) {
			t.Errorf("pixel %d got %v, want grey %d", i, got, want)
		}
	}
}

func TestCreateLUTLinearOffset(t *testing.T) {
	src := newMemSource(2, 2, 1)
	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, greyStretch(100, 355), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	block := blockFrom(2, 2, []float64{100, 200, 355, 50})
	mask := imageMask(MaskImage, MaskImage, MaskImage, MaskImage)
	img, err := lut.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	wantGrey := []uint8{0, 100, 255, 0}
	for i, want := range wantGrey {
		got := pixAt(img, i%2, i/2)
		if got[lutRed] != want {
			t.Errorf("pixel %d got %v, want grey %d", i, got, want)
		}
	}
}

func TestCreateLUTStdDev(t *testing.T) {
	src := newMemSource(2, 1, 1)
	copy(src.bands[0], []float64{40, 60})

	stretch := &Stretch{}
	stretch.SetGreyScale()
	stretch.SetBands([]int{1})
	stretch.SetStdDevStretch(0.5)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	// mean 50, stddev 10, half a deviation either side
	info := singleLUTInfo(t, lut)
	if info.Min != 45 || info.Max != 55 {
		t.Errorf("stretch range got [%f, %f], want [45, 55]", info.Min, info.Max)
	}
}

func TestCreateLUTStdDevClampsToDataRange(t *testing.T) {
	src := newMemSource(2, 1, 1)
	copy(src.bands[0], []float64{40, 60})

	stretch := &Stretch{}
	stretch.SetGreyScale()
	stretch.SetBands([]int{1})
	stretch.SetStdDevStretch(5)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	info := singleLUTInfo(t, lut)
	if info.Min != 40 || info.Max != 60 {
		t.Errorf("stretch range got [%f, %f], want data range [40, 60]", info.Min, info.Max)
	}
}

func TestCreateLUTHist(t *testing.T) {
	src := newMemSource(100, 1, 1)
	for i := range src.bands[0] {
		src.bands[0][i] = float64(i)
	}

	stretch := &Stretch{}
	stretch.SetGreyScale()
	stretch.SetBands([]int{1})
	stretch.SetHistStretch(0.1, 0.1)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	// 10% clipped off either tail of a uniform 0..99 distribution
	info := singleLUTInfo(t, lut)
	if info.Min != 10 || info.Max != 90 {
		t.Errorf("stretch range got [%f, %f], want [10, 90]", info.Min, info.Max)
	}
}

func TestCreateLUTNoStretch(t *testing.T) {
	src := newMemSource(2, 2, 1)
	stretch := &Stretch{}
	stretch.SetGreyScale()
	stretch.SetNoStretch()
	stretch.SetBands([]int{1})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	block := blockFrom(1, 1, []float64{100})
	img, err := lut.ApplyLUTSingle(block, imageMask(MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	if img.Pix[0] != 100 {
		t.Errorf("value 100 got grey %d, want 100", img.Pix[0])
	}
}

func TestCreateLUTFlatData(t *testing.T) {
	src := newMemSource(2, 1, 1)
	copy(src.bands[0], []float64{7, 7})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, greyStretch(math.NaN(), math.NaN()), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	info := singleLUTInfo(t, lut)
	if info.Min != 7 || info.Max != 8 {
		t.Errorf("flat data range got [%f, %f], want [7, 8]", info.Min, info.Max)
	}
	if info.Scale == 0 {
		t.Error("flat data produced a zero scale")
	}
}

func TestLUTSentinels(t *testing.T) {
	src := newMemSource(2, 2, 1)
	stretch := greyStretch(0, 255)
	stretch.SetNoDataRGBA(RGBA{255, 0, 0, 255})
	stretch.SetBackgroundRGBA(RGBA{0, 0, 255, 255})
	stretch.SetNaNRGBA(RGBA{0, 255, 0, 128})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	block := blockFrom(2, 2, []float64{math.NaN(), 10, 20, 30})
	block.Float = true
	mask := imageMask(MaskImage, MaskNoData, MaskBackground, MaskImage)
	img, err := lut.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}

	if got := pixAt(img, 0, 0); got != stretch.NaN {
		t.Errorf("NaN pixel got %v, want %v", got, stretch.NaN)
	}
	if got := pixAt(img, 1, 0); got != stretch.NoData {
		t.Errorf("no-data pixel got %v, want %v", got, stretch.NoData)
	}
	if got := pixAt(img, 0, 1); got != stretch.Background {
		t.Errorf("background pixel got %v, want %v", got, stretch.Background)
	}
	if got := pixAt(img, 1, 1); got != (RGBA{30, 30, 30, 255}) {
		t.Errorf("data pixel got %v, want grey 30", got)
	}
}

func TestCreateLUTColorTable(t *testing.T) {
	src := newMemSource(2, 2, 1)
	ct := []RGBA{{0, 0, 0, 255}, {255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	src.colorTables = map[int][]RGBA{1: ct}

	stretch := &Stretch{}
	stretch.SetColorTable()
	stretch.SetBands([]int{1})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	block := blockFrom(2, 2, []float64{0, 3, 2, 1})
	mask := imageMask(MaskImage, MaskImage, MaskImage, MaskImage)
	img, err := lut.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	want := []RGBA{ct[0], ct[3], ct[2], ct[1]}
	for i, w := range want {
		if got := pixAt(img, i%2, i/2); got != w {
			t.Errorf("pixel %d got %v, want %v", i, got, w)
		}
	}
}

func TestCreateLUTColorTableErrors(t *testing.T) {
	src := newMemSource(2, 2, 1)
	stretch := &Stretch{}
	stretch.SetColorTable()
	stretch.SetBands([]int{1})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err == nil {
		t.Error("expected error when no color table is present")
	}

	src.colorTables = map[int][]RGBA{1: {{0, 0, 0, 255}}}
	stretch.StretchMode = StretchModeLinear
	if err := lut.CreateLUT(src, stretch, nil, nil); err == nil {
		t.Error("expected error for a stretched color table")
	}
}

func TestCreateLUTValidation(t *testing.T) {
	src := newMemSource(2, 2, 3)
	lut := NewViewerLUT()

	if err := lut.CreateLUT(src, &Stretch{}, nil, nil); err == nil {
		t.Error("expected error for default modes")
	}

	stretch := greyStretch(0, 255)
	stretch.SetBands([]int{1, 2})
	if err := lut.CreateLUT(src, stretch, nil, nil); err == nil {
		t.Error("expected error for two bands in greyscale mode")
	}

	stretch = rgbStretch()
	stretch.SetBands([]int{1})
	if err := lut.CreateLUT(src, stretch, nil, nil); err == nil {
		t.Error("expected error for one band in RGB mode")
	}
}

func TestApplyLUTRGB(t *testing.T) {
	src := newMemSource(2, 2, 3)
	stretch := rgbStretch()
	stretch.SetNoDataRGBA(RGBA{9, 8, 7, 6})
	stretch.SetBackgroundRGBA(RGBA{1, 2, 3, 4})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	blocks := []*Block{
		blockFrom(2, 2, []float64{10, 0, 0, 40}),
		blockFrom(2, 2, []float64{20, 0, 0, 50}),
		blockFrom(2, 2, []float64{30, 0, 0, 60}),
	}
	mask := imageMask(MaskImage, MaskNoData, MaskBackground, MaskImage)
	img, err := lut.ApplyLUTRGB(blocks, mask)
	if err != nil {
		t.Fatalf("ApplyLUTRGB failed: %v", err)
	}

	want := []RGBA{
		{10, 20, 30, 255},
		{9, 8, 7, 6},
		{1, 2, 3, 4},
		{40, 50, 60, 255},
	}
	for i, w := range want {
		if got := pixAt(img, i%2, i/2); got != w {
			t.Errorf("pixel %d got %v, want %v", i, got, w)
		}
	}
}

func TestApplyLUTRGBNaNAlpha(t *testing.T) {
	src := newMemSource(2, 1, 3)
	stretch := rgbStretch()
	stretch.SetNaNRGBA(RGBA{11, 22, 33, 44})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	nan := math.NaN()
	blocks := []*Block{
		blockFrom(2, 1, []float64{nan, 10}),
		blockFrom(2, 1, []float64{nan, 20}),
		blockFrom(2, 1, []float64{nan, 30}),
	}
	for _, b := range blocks {
		b.Float = true
	}
	img, err := lut.ApplyLUTRGB(blocks, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTRGB failed: %v", err)
	}
	if got := pixAt(img, 0, 0); got != stretch.NaN {
		t.Errorf("NaN pixel got %v, want %v", got, stretch.NaN)
	}
	if got := pixAt(img, 1, 0); got != (RGBA{10, 20, 30, 255}) {
		t.Errorf("data pixel got %v", got)
	}
}

func TestApplyLUTRGBA(t *testing.T) {
	src := newMemSource(2, 1, 4)
	stretch := &Stretch{}
	stretch.SetRGBA()
	stretch.SetBands([]int{1, 2, 3, 4})
	stretch.SetLinearStretch(0, 255)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	blocks := []*Block{
		blockFrom(2, 1, []float64{10, 40}),
		blockFrom(2, 1, []float64{20, 50}),
		blockFrom(2, 1, []float64{30, 60}),
		blockFrom(2, 1, []float64{128, 255}),
	}
	img, err := lut.ApplyLUTRGB(blocks, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTRGB failed: %v", err)
	}
	if got := pixAt(img, 0, 0); got != (RGBA{10, 20, 30, 128}) {
		t.Errorf("pixel 0 got %v, want (10, 20, 30, 128)", got)
	}
	if got := pixAt(img, 1, 0); got != (RGBA{40, 50, 60, 255}) {
		t.Errorf("pixel 1 got %v, want (40, 50, 60, 255)", got)
	}

	// the LUT was built for 4 bands so 3 are not enough
	if _, err := lut.ApplyLUTRGB(blocks[:3], imageMask(MaskImage, MaskImage)); err == nil {
		t.Error("expected error for wrong band count")
	}
}

func TestApplyLUTErrors(t *testing.T) {
	lut := NewViewerLUT()
	block := blockFrom(1, 1, []float64{0})
	if _, err := lut.ApplyLUTSingle(block, imageMask(MaskImage)); err == nil {
		t.Error("expected error before CreateLUT")
	}
	if _, err := lut.ApplyLUTRGB([]*Block{block, block, block}, imageMask(MaskImage)); err == nil {
		t.Error("expected error before CreateLUT")
	}

	src := newMemSource(2, 2, 1)
	if err := lut.CreateLUT(src, greyStretch(0, 255), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	if _, err := lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage)); err == nil {
		t.Error("expected error for mismatched mask length")
	}
}

func TestHighlightRows(t *testing.T) {
	src := newMemSource(2, 2, 1)
	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, greyStretch(0, 255), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	selection := make([]bool, 11)
	selection[10] = true
	highlight := RGBA{255, 0, 0, 255}
	if err := lut.HighlightRows(highlight, selection); err != nil {
		t.Fatalf("HighlightRows failed: %v", err)
	}

	block := blockFrom(2, 1, []float64{10, 20})
	img, err := lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	if got := pixAt(img, 0, 0); got != highlight {
		t.Errorf("highlighted row got %v, want %v", got, highlight)
	}
	if got := pixAt(img, 1, 0); got != (RGBA{20, 20, 20, 255}) {
		t.Errorf("unselected row got %v, want grey 20", got)
	}

	// a second call restores before applying the new selection
	if err := lut.HighlightRows(highlight, nil); err != nil {
		t.Fatalf("HighlightRows failed: %v", err)
	}
	img, err = lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	if got := pixAt(img, 0, 0); got != (RGBA{10, 10, 10, 255}) {
		t.Errorf("restored row got %v, want grey 10", got)
	}
}

func TestHighlightRowsRGBRejected(t *testing.T) {
	src := newMemSource(2, 2, 3)
	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, rgbStretch(), nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	if err := lut.HighlightRows(RGBA{}, nil); err == nil {
		t.Error("expected error highlighting an RGB LUT")
	}
}

func TestSetColorTableLookup(t *testing.T) {
	src := newMemSource(2, 2, 1)
	ct := []RGBA{{0, 0, 0, 255}, {255, 0, 0, 255}}
	src.colorTables = map[int][]RGBA{1: ct}

	stretch := &Stretch{}
	stretch.SetColorTable()
	stretch.SetBands([]int{1})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	surrogate := []RGBA{{}, {}, {200, 100, 50, 255}}
	if err := lut.SetColorTableLookup([]int{0, 2}, surrogate); err != nil {
		t.Fatalf("SetColorTableLookup failed: %v", err)
	}

	block := blockFrom(2, 1, []float64{0, 1})
	img, err := lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	// a zero lookup entry leaves the original color in place
	if got := pixAt(img, 0, 0); got != ct[0] {
		t.Errorf("value 0 got %v, want %v", got, ct[0])
	}
	if got := pixAt(img, 1, 0); got != surrogate[2] {
		t.Errorf("value 1 got %v, want surrogate %v", got, surrogate[2])
	}

	if err := lut.SetColorTableLookup(nil, nil); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	img, err = lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	if got := pixAt(img, 1, 0); got != ct[1] {
		t.Errorf("after reset value 1 got %v, want %v", got, ct[1])
	}
}

func TestCreateLUTAttributeTable(t *testing.T) {
	src := newMemSource(10, 1, 1)
	for i := range src.bands[0] {
		src.bands[0][i] = float64(i)
	}

	stretch := greyStretch(math.NaN(), math.NaN())
	stretch.SetAttributeTableSize(16)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}
	info := singleLUTInfo(t, lut)
	if info.Scale != 1 || info.Offset != 0 {
		t.Errorf("attribute table LUT should index directly, got scale %f offset %f",
			info.Scale, info.Offset)
	}
	if info.LUTSize != 16 {
		t.Errorf("lutsize got %d, want 16", info.LUTSize)
	}

	block := blockFrom(2, 1, []float64{0, 8})
	img, err := lut.ApplyLUTSingle(block, imageMask(MaskImage, MaskImage))
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	if img.Pix[0] != 0 {
		t.Errorf("value 0 got grey %d, want 0", img.Pix[0])
	}
	if got := pixAt(img, 1, 0); got[lutRed] != 255 {
		t.Errorf("value 8 got grey %d, want 255", got[lutRed])
	}
}

func TestCreateLUTAttributeTableTooSmall(t *testing.T) {
	src := newMemSource(10, 1, 1)
	for i := range src.bands[0] {
		src.bands[0][i] = float64(i)
	}
	stretch := greyStretch(math.NaN(), math.NaN())
	stretch.SetAttributeTableSize(5)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err == nil {
		t.Error("expected error when data exceeds the attribute table size")
	}
}

func TestSaveReadLUTSingle(t *testing.T) {
	src := newMemSource(2, 2, 1)
	stretch := greyStretch(0, 255)
	stretch.SetNoDataRGBA(RGBA{255, 0, 0, 255})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	var buf bytes.Buffer
	if err := lut.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	buf.WriteString("TRAILER\n")

	r := bufio.NewReader(&buf)
	loaded, err := ReadLUT(r, stretch)
	if err != nil {
		t.Fatalf("ReadLUT failed: %v", err)
	}

	block := blockFrom(2, 2, []float64{0, 100, 200, 255})
	mask := imageMask(MaskImage, MaskNoData, MaskImage, MaskImage)
	want, err := lut.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle failed: %v", err)
	}
	got, err := loaded.ApplyLUTSingle(block, mask)
	if err != nil {
		t.Fatalf("ApplyLUTSingle on loaded LUT failed: %v", err)
	}
	if !bytes.Equal(want.Pix, got.Pix) {
		t.Error("loaded LUT renders differently")
	}

	// records after the LUT stay unconsumed
	line, err := r.ReadString('\n')
	if err != nil || line != "TRAILER\n" {
		t.Errorf("trailing record got %q, %v", line, err)
	}
}

func TestSaveReadLUTRGB(t *testing.T) {
	src := newMemSource(2, 2, 3)
	stretch := rgbStretch()
	stretch.SetNoDataRGBA(RGBA{9, 8, 7, 6})
	stretch.SetBackgroundRGBA(RGBA{1, 2, 3, 4})
	stretch.SetNaNRGBA(RGBA{11, 22, 33, 44})

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	var buf bytes.Buffer
	if err := lut.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded, err := ReadLUT(bufio.NewReader(&buf), stretch)
	if err != nil {
		t.Fatalf("ReadLUT failed: %v", err)
	}

	blocks := []*Block{
		blockFrom(2, 2, []float64{10, 0, 0, 40}),
		blockFrom(2, 2, []float64{20, 0, 0, 50}),
		blockFrom(2, 2, []float64{30, 0, 0, 60}),
	}
	mask := imageMask(MaskImage, MaskNoData, MaskBackground, MaskImage)
	want, err := lut.ApplyLUTRGB(blocks, mask)
	if err != nil {
		t.Fatalf("ApplyLUTRGB failed: %v", err)
	}
	got, err := loaded.ApplyLUTRGB(blocks, mask)
	if err != nil {
		t.Fatalf("ApplyLUTRGB on loaded LUT failed: %v", err)
	}
	if !bytes.Equal(want.Pix, got.Pix) {
		t.Error("loaded LUT renders differently")
	}
}

func TestSaveReadLUTRGBA(t *testing.T) {
	src := newMemSource(2, 1, 4)
	stretch := &Stretch{}
	stretch.SetRGBA()
	stretch.SetBands([]int{1, 2, 3, 4})
	stretch.SetLinearStretch(0, 255)

	lut := NewViewerLUT()
	if err := lut.CreateLUT(src, stretch, nil, nil); err != nil {
		t.Fatalf("CreateLUT failed: %v", err)
	}

	var buf bytes.Buffer
	if err := lut.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded, err := ReadLUT(bufio.NewReader(&buf), stretch)
	if err != nil {
		t.Fatalf("ReadLUT failed: %v", err)
	}

	blocks := []*Block{
		blockFrom(2, 1, []float64{10, 40}),
		blockFrom(2, 1, []float64{20, 50}),
		blockFrom(2, 1, []float64{30, 60}),
		blockFrom(2, 1, []float64{128, 255}),
	}
	mask := imageMask(MaskImage, MaskImage)
	want, err := lut.ApplyLUTRGB(blocks, mask)
	if err != nil {
		t.Fatalf("ApplyLUTRGB failed: %v", err)
	}
	got, err := loaded.ApplyLUTRGB(blocks, mask)
	if err != nil {
		t.Fatalf("ApplyLUTRGB on loaded LUT failed: %v", err)
	}
	if !bytes.Equal(want.Pix, got.Pix) {
		t.Error("loaded LUT renders differently")
	}
}

func TestReadLUTTruncated(t *testing.T) {
	if _, err := ReadLUT(bufio.NewReader(strings.NewReader("")), &Stretch{}); err == nil {
		t.Error("expected error for an empty LUT file")
	}
	if _, err := ReadLUT(bufio.NewReader(strings.NewReader("{\"nbands\":1}\n")), &Stretch{}); err == nil {
		t.Error("expected error for a truncated LUT file")
	}
}
