package rasterview

import "fmt"

// InvalidParametersError indicates a caller supplied values that cannot be
// used, such as a zero-sized display or a non-invertible geotransform.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s", e.Reason)
}

// InvalidStretchError indicates a stretch description that cannot be applied
// to the dataset it was given.
type InvalidStretchError struct {
	Reason string
}

func (e *InvalidStretchError) Error() string {
	return fmt.Sprintf("invalid stretch: %s", e.Reason)
}

// InvalidColorTableError indicates a band was expected to carry a color table
// but none was found, or the table is unusable.
type InvalidColorTableError struct {
	Band   int
	Reason string
}

func (e *InvalidColorTableError) Error() string {
	return fmt.Sprintf("invalid color table on band %d: %s", e.Band, e.Reason)
}

// StatisticsError indicates statistics or a histogram could not be gathered
// for a band.
type StatisticsError struct {
	Band   int
	Reason string
}

func (e *StatisticsError) Error() string {
	return fmt.Sprintf("statistics failed on band %d: %s", e.Band, e.Reason)
}

// FileFormatError indicates a saved stretch or lookup table file could not be
// parsed.
type FileFormatError struct {
	Reason string
}

func (e *FileFormatError) Error() string {
	return fmt.Sprintf("bad file format: %s", e.Reason)
}
