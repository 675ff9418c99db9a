package script

// File is the top level of a layout script.
type File struct {
	Libraries []*LibraryBlock `hcl:"library,block"`
}

// LibraryBlock declares a library and the cells it owns.
type LibraryBlock struct {
	Name      string       `hcl:"name,label"`
	Unit      *float64     `hcl:"unit,optional"`
	Precision *float64     `hcl:"precision,optional"`
	Cells     []*CellBlock `hcl:"cell,block"`
}

// CellBlock declares a cell. Every cell of a library is populated before
// any filter runs, and all filters run before any flatten.
type CellBlock struct {
	Name             string            `hcl:"name,label"`
	Polygons         []*PolygonBlock   `hcl:"polygon,block"`
	Rectangles       []*RectangleBlock `hcl:"rectangle,block"`
	Labels           []*LabelBlock     `hcl:"label,block"`
	Paths            []*PathBlock      `hcl:"path,block"`
	References       []*ReferenceBlock `hcl:"reference,block"`
	Filters          []*FilterBlock    `hcl:"filter,block"`
	Flatten          bool              `hcl:"flatten,optional"`
	ApplyRepetitions bool              `hcl:"apply_repetitions,optional"`
}

// RepetitionBlock is a rectangular array of placements.
type RepetitionBlock struct {
	Columns uint64    `hcl:"columns"`
	Rows    uint64    `hcl:"rows"`
	Spacing []float64 `hcl:"spacing"`
}

type PolygonBlock struct {
	Points     [][]float64      `hcl:"points"`
	Layer      uint32           `hcl:"layer,optional"`
	Datatype   uint32           `hcl:"datatype,optional"`
	Repetition *RepetitionBlock `hcl:"repetition,block"`
}

type RectangleBlock struct {
	Corner1    []float64        `hcl:"corner1"`
	Corner2    []float64        `hcl:"corner2"`
	Layer      uint32           `hcl:"layer,optional"`
	Datatype   uint32           `hcl:"datatype,optional"`
	Repetition *RepetitionBlock `hcl:"repetition,block"`
}

type LabelBlock struct {
	Text          string    `hcl:"text"`
	Origin        []float64 `hcl:"origin,optional"`
	Anchor        string    `hcl:"anchor,optional"`
	Rotation      float64   `hcl:"rotation,optional"`
	Magnification *float64  `hcl:"magnification,optional"`
	XReflection   bool      `hcl:"x_reflection,optional"`
	Layer         uint32    `hcl:"layer,optional"`
	Texttype      uint32    `hcl:"texttype,optional"`
}

// PathBlock is a flexible path. Elements > 1 spreads that many parallel
// elements Separation apart around the spine.
type PathBlock struct {
	Points     [][]float64 `hcl:"points"`
	Width      float64     `hcl:"width"`
	Elements   int         `hcl:"elements,optional"`
	Separation float64     `hcl:"separation,optional"`
	Layer      uint32      `hcl:"layer,optional"`
	Datatype   uint32      `hcl:"datatype,optional"`
	Join       string      `hcl:"join,optional"`
	End        string      `hcl:"end,optional"`
	Extensions []float64   `hcl:"extensions,optional"`
	BendRadius float64     `hcl:"bend_radius,optional"`
	Tolerance  *float64    `hcl:"tolerance,optional"`
}

// ReferenceBlock places a cell by name. Names of cells in the same library
// link to that cell; any other name is kept as a name reference.
type ReferenceBlock struct {
	Cell          string    `hcl:"cell"`
	Origin        []float64 `hcl:"origin,optional"`
	Rotation      float64   `hcl:"rotation,optional"`
	Magnification *float64  `hcl:"magnification,optional"`
	XReflection   bool      `hcl:"x_reflection,optional"`
	Columns       *uint64   `hcl:"columns,optional"`
	Rows          *uint64   `hcl:"rows,optional"`
	Spacing       []float64 `hcl:"spacing,optional"`
}

// FilterBlock removes objects whose tag matches, or keeps only those when
// Keep is set. Unset kind switches default to true.
type FilterBlock struct {
	Layers    []uint32 `hcl:"layers,optional"`
	Types     []uint32 `hcl:"types,optional"`
	Operation string   `hcl:"operation,optional"`
	Keep      bool     `hcl:"keep,optional"`
	Polygons  *bool    `hcl:"polygons,optional"`
	Paths     *bool    `hcl:"paths,optional"`
	Labels    *bool    `hcl:"labels,optional"`
}
